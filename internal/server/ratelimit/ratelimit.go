// Package ratelimit implements the account-lockout hook consulted before
// credential verification. The default implementation keeps per-key token
// buckets in memory; multi-instance deployments would back this with a
// shared store instead.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LockoutPolicy is consulted before credential verification. Allow returns
// false when the identifier (account, IP) has exhausted its attempts and
// login should short-circuit with an account-locked failure.
type LockoutPolicy interface {
	Allow(ctx context.Context, key string) bool
}

// Limiter is an in-memory LockoutPolicy: one token bucket per key,
// refilling at the configured rate.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*entry
	limit    rate.Limit
	burst    int
	lastSeen func() time.Time
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLimiter builds a Limiter allowing burst attempts immediately and then
// one attempt per interval.
func NewLimiter(interval time.Duration, burst int) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*entry),
		limit:    rate.Every(interval),
		burst:    burst,
		lastSeen: time.Now,
	}
}

func (l *Limiter) Allow(ctx context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.buckets[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = e
	}
	e.seen = l.lastSeen()
	return e.lim.Allow()
}

// Prune drops buckets idle longer than maxIdle; call it periodically so the
// map does not grow without bound.
func (l *Limiter) Prune(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.lastSeen().Add(-maxIdle)
	dropped := 0
	for k, e := range l.buckets {
		if e.seen.Before(cutoff) {
			delete(l.buckets, k)
			dropped++
		}
	}
	return dropped
}

// AllowAll is a LockoutPolicy that never locks anyone out. Useful in tests.
type AllowAll struct{}

func (AllowAll) Allow(ctx context.Context, key string) bool { return true }
