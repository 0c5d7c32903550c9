package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"devshell/internal/core/config"
	"devshell/internal/core/watcher"
	"devshell/internal/shared/observability"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	// ConfigPath enables hot reload of build settings when set.
	ConfigPath string
	// BaseDir anchors relative watch paths; defaults to the config file's
	// directory, or the working directory without one.
	BaseDir string
	// InitialBuild runs the build once before the first change.
	InitialBuild bool
	Logger       *slog.Logger
	// WatchOptions are passed through to watcher.Watch.
	WatchOptions []watcher.Option
}

type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	logger     *slog.Logger
	rebuilder  *Rebuilder
	configPath string
	initial    bool
	watchOpts  []watcher.Option
	started    time.Time

	mu     sync.RWMutex
	handle *watcher.Handle
}

func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := opts.BaseDir
	if base == "" && opts.ConfigPath != "" {
		base = filepath.Dir(opts.ConfigPath)
	}
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		base = cwd
	}
	paths, err := config.ResolvePaths(cfg, base)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:     cfg,
		Paths:      paths,
		logger:     logger,
		rebuilder:  NewRebuilder(cfg.Build, paths.BuildDir, logger),
		configPath: opts.ConfigPath,
		initial:    opts.InitialBuild,
		watchOpts:  opts.WatchOptions,
	}, nil
}

// Run watches until ctx is cancelled or nothing is left to watch.
func (a *App) Run(ctx context.Context) error {
	a.started = time.Now()
	obs := a.Config.Observability

	if obs.EnableTracing {
		shutdown, err := observability.SetupTracing(ctx, obs.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer a.shutdown("tracing", shutdown)
	}

	if obs.Enabled {
		srv := observability.NewServer(obs.Address, NewHealthService(a).Probe)
		if err := srv.Start(); err != nil {
			return err
		}
		a.logger.Info("observability server listening", "address", srv.Addr())
		defer a.shutdown("observability server", srv.Shutdown)
	}

	ctx, cancel := context.WithCancel(ctx)

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		a.rebuilder.Run(ctx)
	}()
	defer workers.Wait()
	defer cancel()

	if a.configPath != "" {
		cw := config.NewWatcher(a.configPath, a.Reload)
		if err := cw.Start(ctx); err != nil {
			a.logger.Warn("config hot reload disabled", "path", a.configPath, "error", err)
		} else {
			defer cw.Stop()
		}
	}

	if err := a.StartWatcher(); err != nil {
		return err
	}
	defer a.StopWatcher()

	if a.initial {
		a.rebuilder.OnChange()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case <-a.watchDone():
		a.logger.Info("watch ended, nothing left to watch")
	}
	return nil
}

// Reload applies a reloaded configuration. Build settings take effect for the
// next build; watch paths need a restart.
func (a *App) Reload(cfg *config.Config) {
	base := a.Paths.BaseDir
	paths, err := config.ResolvePaths(cfg, base)
	if err != nil {
		a.logger.Warn("ignoring reloaded configuration", "error", err)
		return
	}
	a.rebuilder.Configure(cfg.Build, paths.BuildDir)
	if !slices.Equal(paths.WatchPaths, a.Paths.WatchPaths) {
		a.logger.Warn("watch paths changed; restart to apply", "paths", cfg.Watch.Paths)
	}
	a.logger.Info("configuration reloaded", "build_command", cfg.Build.Command)
}

// Rebuilder exposes the build runner, mainly for health reporting.
func (a *App) Rebuilder() *Rebuilder {
	return a.rebuilder
}

func (a *App) shutdown(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("shutdown failed", "component", name, "error", err)
	}
}
