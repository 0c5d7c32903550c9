package cli

import (
	"devshell/internal/core/watcher"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	dirBadge    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")).Render("dir   ")
	fileBadge   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Render("file  ")
	absentBadge = warnStyle.Render("absent")
)

func kindBadge(kind watcher.EntryKind) string {
	switch kind {
	case watcher.KindDirectory:
		return dirBadge
	case watcher.KindSingleFile:
		return fileBadge
	default:
		return absentBadge
	}
}
