// Package ratelimit provides a sliding-window admission gate for outbound
// calls to rate-capped external APIs.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Limiter admits at most maxRequests calls in any trailing window. Entries
// older than the window are purged lazily on every inspection; there is no
// background timer. Safe for concurrent use: check-and-record happens under
// one lock acquisition, so two callers can never both be admitted into the
// last free slot.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	calls       []time.Time

	now func() time.Time
}

func New(maxRequests int, window time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// purge drops timestamps that fell out of the trailing window.
// Callers must hold mu.
func (l *Limiter) purge(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

// CanProceed reports whether another call would currently be admitted.
// Introspection only: production code should go through RunGated.
func (l *Limiter) CanProceed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.purge(l.now())
	return len(l.calls) < l.maxRequests
}

// RecordCall timestamps one issued request. It must be called exactly once
// per request actually sent, never for blocked or skipped calls.
func (l *Limiter) RecordCall() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.purge(now)
	l.calls = append(l.calls, now)
}

// WaitTime returns how long until the oldest in-window call expires, or 0 if
// admission is currently possible.
func (l *Limiter) WaitTime() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.purge(now)
	if len(l.calls) < l.maxRequests {
		return 0
	}
	return l.calls[0].Add(l.window).Sub(now)
}

// RunGated blocks until admission is possible, records the call and executes
// fn. Rate-limit exhaustion is backpressure, not an error: the only error
// returned besides fn's own is the context's.
func (l *Limiter) RunGated(ctx context.Context, fn func(ctx context.Context) error) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.purge(now)
		if len(l.calls) < l.maxRequests {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return fn(ctx)
		}
		wait := l.calls[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

type Stats struct {
	RequestsInWindow   int     `json:"requestsInWindow"`
	Remaining          int     `json:"remaining"`
	MaxRequests        int     `json:"maxRequests"`
	UtilizationPercent float64 `json:"utilizationPercent"`
}

// Stats exposes raw window utilization for the monitoring endpoint.
// Threshold labeling (OK/WARNING/CRITICAL) is presentation and lives in the
// HTTP layer.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.purge(l.now())

	in := len(l.calls)
	remaining := l.maxRequests - in
	if remaining < 0 {
		remaining = 0
	}
	pct := float64(in) / float64(l.maxRequests) * 100
	return Stats{
		RequestsInWindow:   in,
		Remaining:          remaining,
		MaxRequests:        l.maxRequests,
		UtilizationPercent: math.Round(pct*10) / 10,
	}
}
