package cli

import (
	"fmt"
	"time"

	coreapp "devshell/internal/core/app"
	"devshell/internal/core/watcher"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

const refreshInterval = 500 * time.Millisecond

type entryItem struct {
	entry watcher.Entry
}

func (i entryItem) Title() string { return i.entry.Path }
func (i entryItem) Description() string {
	if i.entry.Kind == watcher.KindAbsent {
		return "absent, waiting in " + i.entry.Upstream
	}
	return i.entry.Kind.String()
}
func (i entryItem) FilterValue() string { return i.entry.Path }

// snapshotMsg carries the app state the dashboard renders.
type snapshotMsg struct {
	entries   []watcher.Entry
	lastBuild *coreapp.BuildResult
	builds    int
}

type tickMsg time.Time

type model struct {
	list       list.Model
	snapshot   func() snapshotMsg
	lastBuild  *coreapp.BuildResult
	builds     int
	entryCount int
	lastUpdate time.Time
}

func initialModel(snapshot func() snapshotMsg) model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Watch Entries"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		list:       l,
		snapshot:   snapshot,
		lastUpdate: time.Now(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || (msg.String() == "q" && !m.list.SettingFilter()) {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case tickMsg:
		if m.snapshot == nil {
			return m, tick()
		}
		snap := m.snapshot()
		return m, tea.Batch(func() tea.Msg { return snap }, tick())
	case snapshotMsg:
		m.lastBuild = msg.lastBuild
		m.builds = msg.builds
		m.entryCount = len(msg.entries)
		m.lastUpdate = time.Now()

		items := make([]list.Item, 0, len(msg.entries))
		for _, e := range msg.entries {
			items = append(items, entryItem{entry: e})
		}
		cmd := m.list.SetItems(items)
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	status := mutedStyle.Render(fmt.Sprintf("Last update: %v | %d entries | %d builds",
		m.lastUpdate.Format("15:04:05"), m.entryCount, m.builds))

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle.Render("devshell"), status, m.buildSummary())
	return docStyle.Render(header + "\n" + m.list.View())
}

func (m model) buildSummary() string {
	switch {
	case m.lastBuild == nil:
		return mutedStyle.Render("waiting for changes")
	case m.lastBuild.Skipped:
		return warnStyle.Render("no build command")
	case m.lastBuild.OK():
		return successStyle.Render(fmt.Sprintf("build ok (%s)", m.lastBuild.Duration.Round(time.Millisecond)))
	default:
		return errorStyle.Render("build failed: " + m.lastBuild.Error)
	}
}
