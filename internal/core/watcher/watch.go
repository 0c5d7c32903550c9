package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	domainerrors "devshell/internal/core/errors"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

// Listener is told that something under watch changed. OnChange is called
// from the watch goroutine, at most once per batch and never concurrently.
type Listener interface {
	OnChange()
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func()

func (f ListenerFunc) OnChange() { f() }

type options struct {
	service     Service
	logger      *slog.Logger
	excludeDirs []string
}

type Option func(*options)

// WithService replaces the fsnotify-backed native service. The handle takes
// ownership and closes it on Unwatch.
func WithService(service Service) Option {
	return func(o *options) { o.service = service }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithExcludeDirs skips sub-directories whose base name matches any of the
// glob patterns. Roots are always watched.
func WithExcludeDirs(patterns ...string) Option {
	return func(o *options) { o.excludeDirs = append(o.excludeDirs, patterns...) }
}

// Handle controls a running watch.
type Handle struct {
	session string
	service Service
	reg     *registry
	logger  *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Watch classifies and registers every root, then starts the watch goroutine.
// Roots may be files, directories or paths that do not exist yet. Symbolic
// links and special files are rejected; on any error nothing is left running.
func Watch(roots []string, listener Listener, opts ...Option) (*Handle, error) {
	if listener == nil {
		return nil, domainerrors.New(domainerrors.CodeValidationError, "listener is required")
	}
	if len(roots) == 0 {
		return nil, domainerrors.New(domainerrors.CodeValidationError, "at least one path to watch is required")
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	excludes := make([]glob.Glob, 0, len(o.excludeDirs))
	for _, pattern := range o.excludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, domainerrors.AddContext(
				domainerrors.Wrap(err, domainerrors.CodeValidationError, "invalid exclude pattern"),
				"pattern", pattern)
		}
		excludes = append(excludes, g)
	}

	session := uuid.NewString()
	logger := o.logger.With("session", session)

	service := o.service
	if service == nil {
		svc, err := NewNotifyService(logger)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "native watch service unavailable")
		}
		service = svc
	}

	reg := newRegistry(service, excludes, logger)
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			abort(reg, service)
			return nil, domainerrors.AddContext(
				domainerrors.Wrap(err, domainerrors.CodeValidationError, "cannot resolve watch path"),
				domainerrors.CtxPath, root)
		}
		if _, _, err := reg.classify(abs); err != nil {
			abort(reg, service)
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		session: session,
		service: service,
		reg:     reg,
		logger:  logger,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	d := &dispatcher{service: service, reg: reg, listener: listener, logger: logger}
	go func() {
		defer close(h.done)
		defer service.Close()
		// A cycle racing Unwatch may still have registered entries.
		defer reg.clear()
		d.run(ctx)
	}()

	logger.Info("watching", "roots", len(roots), "entries", len(reg.snapshot()))
	return h, nil
}

func abort(reg *registry, service Service) {
	reg.clear()
	_ = service.Close()
}

// Unwatch cancels every native key and stops the watch goroutine. It does not
// wait for the goroutine; use Done for that. The entry set is empty once Done
// is closed. Safe to call more than once and
// from any goroutine.
func (h *Handle) Unwatch() {
	h.once.Do(func() {
		h.cancel()
		if err := h.service.Close(); err != nil {
			h.logger.Warn("failed to close watch service", "error", err)
		}
		h.reg.clear()
		h.logger.Info("unwatched")
	})
}

// Done is closed once the watch goroutine has returned, either after Unwatch
// or because nothing is left to watch.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Entries returns a snapshot of the current watch targets, sorted by path.
func (h *Handle) Entries() []Entry {
	return h.reg.snapshot()
}

// Session identifies this watch in logs.
func (h *Handle) Session() string {
	return h.session
}
