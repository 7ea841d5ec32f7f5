package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"marketlink/pkg/core"
)

// Limiter spreads one venue's request budget over its period.
// A nil *Limiter allows every request.
type Limiter struct {
	limiter  *rate.Limiter
	requests int
	period   time.Duration
	stats    *stats
}

type stats struct {
	total   atomic.Int64
	allowed atomic.Int64
	denied  atomic.Int64
}

// New creates a Limiter allowing requests per period, with the whole budget
// available as burst.
func New(requests int, period time.Duration) *Limiter {
	rps := float64(requests) / period.Seconds()
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(rps), requests),
		requests: requests,
		period:   period,
		stats:    &stats{},
	}
}

// FromConfig returns nil for an empty budget.
func FromConfig(cfg core.RateLimitConfig) *Limiter {
	if cfg.Requests <= 0 || cfg.Period <= 0 {
		return nil
	}
	return New(cfg.Requests, cfg.Period)
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	l.stats.total.Add(1)
	if err := l.limiter.Wait(ctx); err != nil {
		l.stats.denied.Add(1)
		return err
	}
	l.stats.allowed.Add(1)
	return nil
}

// Allow reports whether a request may proceed immediately, consuming a token if so.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	l.stats.total.Add(1)
	if l.limiter.Allow() {
		l.stats.allowed.Add(1)
		return true
	}
	l.stats.denied.Add(1)
	return false
}

// Budget returns the configured requests per period.
func (l *Limiter) Budget() (int, time.Duration) {
	if l == nil {
		return 0, 0
	}
	return l.requests, l.period
}

// Stats returns a snapshot of the limiter counters.
func (l *Limiter) Stats() Stats {
	if l == nil {
		return Stats{}
	}
	return Stats{
		Total:   l.stats.total.Load(),
		Allowed: l.stats.allowed.Load(),
		Denied:  l.stats.denied.Load(),
	}
}

// Stats is a point-in-time capture of limiter counters.
type Stats struct {
	// Total is the number of checks performed.
	Total int64
	// Allowed is the number of requests let through.
	Allowed int64
	// Denied is the number of waits that ended before a token was available.
	Denied int64
}
