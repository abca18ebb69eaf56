// Package ratelimit provides request throttling built on golang.org/x/time/rate
// and golang.org/x/sync/semaphore.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter with a requests-per-minute constructor.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerMinute, with a burst of 10%.
func New(requestsPerMinute int) *Limiter {
	rps := float64(requestsPerMinute) / 60.0
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Gate caps in-flight calls and optionally spaces them by a minimum delay.
type Gate struct {
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	capacity int
}

// NewGate allows maxConcurrent calls at once. A positive minDelay also
// spaces call starts at least minDelay apart.
func NewGate(maxConcurrent int, minDelay time.Duration) *Gate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	g := &Gate{
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		capacity: maxConcurrent,
	}
	if minDelay > 0 {
		g.limiter = rate.NewLimiter(rate.Every(minDelay), 1)
	}
	return g
}

// Acquire blocks for a slot. The returned release must be called exactly once.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.sem.Release(1)
			return nil, err
		}
	}

	return func() { g.sem.Release(1) }, nil
}

// Capacity returns the concurrency cap.
func (g *Gate) Capacity() int {
	return g.capacity
}
