package app

import (
	"devshell/internal/core/watcher"
)

func (a *App) StartWatcher() error {
	opts := append([]watcher.Option{
		watcher.WithLogger(a.logger),
		watcher.WithExcludeDirs(a.Config.Watch.ExcludeDirs...),
	}, a.watchOpts...)

	h, err := watcher.Watch(a.Paths.WatchPaths, a.rebuilder, opts...)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.handle = h
	a.mu.Unlock()
	return nil
}

func (a *App) StopWatcher() {
	a.mu.RLock()
	h := a.handle
	a.mu.RUnlock()
	if h == nil {
		return
	}
	h.Unwatch()
	<-h.Done()
}

// Entries returns the live watch targets, or nil before StartWatcher.
func (a *App) Entries() []watcher.Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.handle == nil {
		return nil
	}
	return a.handle.Entries()
}

func (a *App) watchDone() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.handle == nil {
		return nil
	}
	return a.handle.Done()
}

func (a *App) watching() bool {
	select {
	case <-a.watchDone():
		return false
	default:
		return a.watchDone() != nil
	}
}
