// Package ratelimit enforces the fixed inter-request delays the upstream
// APIs expect. The pipeline is strictly sequential, so a simple
// last-request timestamp is all the bookkeeping required.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter gates outbound requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// FixedDelay enforces a fixed minimum delay between consecutive requests.
// The first call never blocks.
type FixedDelay struct {
	delay       time.Duration
	lastRequest time.Time
	mu          sync.Mutex
}

// NewFixedDelay creates a limiter with the given inter-request delay.
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{delay: delay}
}

// Wait blocks until the delay since the previous request has elapsed, or
// until ctx is cancelled.
func (fd *FixedDelay) Wait(ctx context.Context) error {
	fd.mu.Lock()
	now := time.Now()
	wait := fd.reserve(now)
	fd.lastRequest = now.Add(wait)
	fd.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (fd *FixedDelay) reserve(now time.Time) time.Duration {
	if fd.lastRequest.IsZero() {
		return 0
	}

	elapsed := now.Sub(fd.lastRequest)
	if elapsed >= fd.delay {
		return 0
	}
	return fd.delay - elapsed
}

// None is a no-op limiter for tests.
type None struct{}

func (None) Wait(context.Context) error { return nil }
