// Package ratelimit wraps golang.org/x/time/rate for upstream API clients and
// per-client limiting in the HTTP server.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter with a name for logging/debugging.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// New creates a new rate limiter with the given requests per second.
// The burst size equals the rate, allowing short bursts up to the rate limit.
func New(name string, requestsPerSecond int) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		name:    name,
	}
}

// Unlimited returns a limiter that never blocks. Used by tests and local
// fake upstreams.
func Unlimited(name string) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Inf, 0),
		name:    name,
	}
}

// Wait blocks until the rate limiter allows a request to proceed.
// Returns an error if the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", l.name, err)
	}
	return nil
}

// Allow reports whether a request can proceed without blocking.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Name returns the name of this rate limiter.
func (l *Limiter) Name() string {
	return l.name
}

// Keyed hands out one token bucket per key (client address, user id).
// Buckets idle for longer than the idle window are dropped on the next sweep.
type Keyed struct {
	mu      sync.Mutex
	perSec  rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	buckets map[string]*keyedBucket
	sweepAt time.Time
}

type keyedBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyed creates a keyed limiter allowing requestsPerSecond with the given burst per key.
func NewKeyed(requestsPerSecond float64, burst int, idle time.Duration) *Keyed {
	if burst <= 0 {
		burst = 1
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &Keyed{
		perSec:  rate.Limit(requestsPerSecond),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
		buckets: make(map[string]*keyedBucket),
	}
}

// Allow reports whether the request for key may proceed now.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	if now.After(k.sweepAt) {
		for name, b := range k.buckets {
			if now.Sub(b.lastSeen) > k.idle {
				delete(k.buckets, name)
			}
		}
		k.sweepAt = now.Add(k.idle)
	}

	b, ok := k.buckets[key]
	if !ok {
		b = &keyedBucket{limiter: rate.NewLimiter(k.perSec, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
