package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	domainerrors "devshell/internal/core/errors"
	"devshell/internal/core/watcher"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads a configuration file whenever it changes. The file may be
// missing when Start is called; it is picked up once it appears.
type Watcher struct {
	path     string
	callback func(*Config)
	logger   *slog.Logger

	mu     sync.Mutex
	handle *watcher.Handle
	timer  *time.Timer
}

// NewWatcher creates a new configuration watcher.
func NewWatcher(path string, callback func(*Config)) *Watcher {
	return &Watcher{
		path:     path,
		callback: callback,
		logger:   slog.Default().With("component", "config"),
	}
}

// Start begins watching the configuration file. Watching stops when ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	w.path = abs

	h, err := watcher.Watch([]string{abs}, watcher.ListenerFunc(w.schedule), watcher.WithLogger(w.logger))
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.handle = h
	w.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-h.Done():
		}
	}()

	w.logger.Info("starting config watcher", "path", abs)
	return nil
}

// Stop stops the watcher. Pending reloads are discarded.
func (w *Watcher) Stop() {
	w.mu.Lock()
	h := w.handle
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	if h != nil {
		h.Unwatch()
		<-h.Done()
	}
}

// schedule runs on the watch goroutine, so the reload itself is deferred.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	w.logger.Info("config file change detected, reloading", "path", w.path)
	cfg, err := Load(w.path)
	if domainerrors.IsCode(err, domainerrors.CodeNotFound) {
		w.logger.Info("config file removed, keeping current configuration", "path", w.path)
		return
	}
	if err != nil {
		w.logger.Warn("failed to reload configuration", "path", w.path, "error", err)
		return
	}

	if w.callback != nil {
		w.callback(cfg)
	}
}
