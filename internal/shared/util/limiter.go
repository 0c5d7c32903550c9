package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter to provide a simpler interface.
type Limiter struct {
	inner *rate.Limiter
}

// NewIntervalLimiter allows one event per interval after the initial burst.
// A non-positive interval disables limiting.
func NewIntervalLimiter(interval time.Duration, b int) *Limiter {
	if interval <= 0 {
		return &Limiter{inner: rate.NewLimiter(rate.Inf, b)}
	}
	return &Limiter{inner: rate.NewLimiter(rate.Every(interval), b)}
}

// Allow reports whether an event with weight n may happen now.
func (l *Limiter) Allow(n int) bool {
	return l.inner.AllowN(time.Now(), n)
}

// Wait blocks until n tokens are available.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	return l.inner.WaitN(ctx, n)
}

// Delay reports how long a caller would currently wait for one token.
func (l *Limiter) Delay() time.Duration {
	r := l.inner.Reserve()
	defer r.Cancel()
	return r.Delay()
}
