package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles outbound calls to external APIs with a token
// bucket whose capacity and refill rate both equal the configured
// requests per second. An optional per-minute cap applies a hard wait
// once a rolling 60-second window is exhausted.
//
// Safe for concurrent use; token accounting is exact under contention.
type Limiter struct {
	bucket *rate.Limiter

	mu          sync.Mutex
	perMinute   int
	windowStart time.Time
	windowCount int
}

// New creates a limiter for the given requests-per-second rate.
// perMinute <= 0 disables the secondary cap.
func New(rps float64, perMinute int) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		bucket:    rate.NewLimiter(rate.Limit(rps), burst),
		perMinute: perMinute,
	}
}

// Acquire blocks until a token is available, then consumes it.
// Returns early with the context's error on cancellation.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.waitMinuteWindow(ctx); err != nil {
		return err
	}
	return l.bucket.Wait(ctx)
}

// waitMinuteWindow enforces the rolling per-minute cap
func (l *Limiter) waitMinuteWindow(ctx context.Context) error {
	if l.perMinute <= 0 {
		return nil
	}

	for {
		l.mu.Lock()
		now := time.Now()
		if l.windowStart.IsZero() || now.Sub(l.windowStart) >= time.Minute {
			l.windowStart = now
			l.windowCount = 0
		}
		if l.windowCount < l.perMinute {
			l.windowCount++
			l.mu.Unlock()
			return nil
		}
		wait := time.Minute - now.Sub(l.windowStart)
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
