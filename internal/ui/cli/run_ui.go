package cli

import (
	"context"
	"errors"

	coreapp "devshell/internal/core/app"

	tea "github.com/charmbracelet/bubbletea"
)

func appSnapshot(a *coreapp.App) func() snapshotMsg {
	return func() snapshotMsg {
		snap := snapshotMsg{
			entries: a.Entries(),
			builds:  a.Rebuilder().Count(),
		}
		if last, ok := a.Rebuilder().Last(); ok {
			snap.lastBuild = &last
		}
		return snap
	}
}

// runUI runs the app behind a dashboard. Quitting the dashboard stops the
// app; the app ending closes the dashboard.
func runUI(ctx context.Context, a *coreapp.App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(initialModel(appSnapshot(a)), tea.WithAltScreen(), tea.WithContext(ctx))

	runErr := make(chan error, 1)
	go func() {
		err := a.Run(ctx)
		runErr <- err
		p.Quit()
	}()

	_, uiErr := p.Run()
	cancel()
	err := <-runErr
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return errors.Join(err, uiErr)
	}
	return err
}
