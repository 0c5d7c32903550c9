package app

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"devshell/internal/core/config"
	domainerrors "devshell/internal/core/errors"
	"devshell/internal/shared/observability"
	"devshell/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	maxOutputTail = 4096
	// outputWaitDelay bounds how long a killed build may keep its output
	// pipe open through processes it left behind.
	outputWaitDelay = 2 * time.Second
)

// RunFunc executes a build command and returns its combined output.
type RunFunc func(ctx context.Context, dir string, args []string) ([]byte, error)

// BuildResult describes the most recent rebuild.
type BuildResult struct {
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Skipped  bool          `json:"skipped,omitempty"`
	Error    string        `json:"error,omitempty"`
	Output   string        `json:"output,omitempty"`
}

func (r BuildResult) OK() bool { return r.Error == "" }

type buildSettings struct {
	args    []string
	dir     string
	timeout time.Duration
	limiter *util.Limiter
}

// Rebuilder runs the configured build command after file changes. Changes
// arriving while a build is pending or running are folded into one
// follow-up build.
type Rebuilder struct {
	logger  *slog.Logger
	run     RunFunc
	pending chan struct{}

	mu       sync.Mutex
	settings buildSettings
	last     *BuildResult
	count    int
}

func NewRebuilder(cfg config.Build, dir string, logger *slog.Logger) *Rebuilder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Rebuilder{
		logger:  logger.With("component", "rebuild"),
		run:     runCommand,
		pending: make(chan struct{}, 1),
	}
	r.Configure(cfg, dir)
	return r
}

// Configure swaps the build settings. A build already running keeps the
// settings it started with.
func (r *Rebuilder) Configure(cfg config.Build, dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = buildSettings{
		args:    cfg.BuildArgs(),
		dir:     dir,
		timeout: cfg.Timeout,
		limiter: util.NewIntervalLimiter(cfg.MinInterval, cfg.Burst),
	}
}

// OnChange implements watcher.Listener. It never blocks.
func (r *Rebuilder) OnChange() {
	select {
	case r.pending <- struct{}{}:
	default:
		observability.BuildsCoalescedTotal.Inc()
	}
}

// Run processes pending rebuilds until ctx is cancelled.
func (r *Rebuilder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.pending:
		}

		r.mu.Lock()
		settings := r.settings
		r.mu.Unlock()

		if !settings.limiter.Allow(1) {
			observability.BuildsThrottledTotal.Inc()
			r.logger.Debug("rebuild rate limited", "delay", settings.limiter.Delay())
			if err := settings.limiter.Wait(ctx, 1); err != nil {
				return
			}
		}
		r.build(ctx, settings)
	}
}

func (r *Rebuilder) build(ctx context.Context, s buildSettings) {
	result := BuildResult{Started: time.Now()}
	if len(s.args) == 0 {
		result.Skipped = true
		observability.BuildsTotal.WithLabelValues("skipped").Inc()
		r.logger.Info("change detected, no build command configured")
		r.record(result)
		return
	}

	ctx, span := observability.Tracer.Start(ctx, "devshell.build")
	span.SetAttributes(attribute.String("build.command", s.args[0]), attribute.String("build.dir", s.dir))
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r.logger.Info("rebuilding", "command", s.args, "dir", s.dir)
	out, err := r.run(runCtx, s.dir, s.args)
	result.Duration = time.Since(result.Started)
	result.Output = tail(out, maxOutputTail)
	observability.BuildDuration.Observe(result.Duration.Seconds())

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = domainerrors.AddContext(
				domainerrors.Wrap(err, domainerrors.CodeUnavailable, "build timed out"),
				"timeout", s.timeout)
		}
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		observability.BuildsTotal.WithLabelValues("failure").Inc()
		r.logger.Warn("build failed", "error", err, "duration", result.Duration, "output", result.Output)
	} else {
		observability.BuildsTotal.WithLabelValues("success").Inc()
		r.logger.Info("build succeeded", "duration", result.Duration)
	}
	r.record(result)
}

func (r *Rebuilder) record(result BuildResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &result
	r.count++
}

// Last returns the most recent build result, if any build has run.
func (r *Rebuilder) Last() (BuildResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return BuildResult{}, false
	}
	return *r.last, true
}

// Count returns the number of builds run so far, skipped ones included.
func (r *Rebuilder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func runCommand(ctx context.Context, dir string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.WaitDelay = outputWaitDelay
	return cmd.CombinedOutput()
}

func tail(out []byte, n int) string {
	if len(out) <= n {
		return string(out)
	}
	return string(out[len(out)-n:])
}
