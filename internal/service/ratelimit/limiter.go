package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultSweepEvery = time.Minute

// Limiter keeps one token bucket per key. With burst 1 it acts as a pacer:
// consecutive Wait calls for the same key are spaced by at least the interval.
// Buckets that have refilled are dropped periodically, as a full bucket is
// indistinguishable from a new one.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	limit rate.Limit
	burst int

	sweepEvery time.Duration
	lastSweep  time.Time
}

// New builds a limiter releasing one token per interval. A non-positive
// interval disables limiting.
func New(interval time.Duration, burst int) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		m:          make(map[string]*rate.Limiter),
		limit:      limit,
		burst:      burst,
		sweepEvery: defaultSweepEvery,
		lastSweep:  time.Now(),
	}
}

// NewPacer is a limiter that serializes calls with a fixed delay between them.
func NewPacer(delay time.Duration) *Limiter {
	return New(delay, 1)
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	if l.limit == rate.Inf {
		return rate.NewLimiter(rate.Inf, l.burst)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.Sub(l.lastSweep) >= l.sweepEvery {
		l.sweep(now)
	}
	b, ok := l.m[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.m[key] = b
	}
	return b
}

// sweep drops refilled buckets. Callers hold l.mu.
func (l *Limiter) sweep(now time.Time) {
	for k, b := range l.m {
		if b.TokensAt(now) >= float64(l.burst) {
			delete(l.m, k)
		}
	}
	l.lastSweep = now
}

// Len reports how many keys currently hold a bucket.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// Wait blocks until a token for key is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.bucket(key).Wait(ctx)
}

// Allow reports whether one token can be consumed for key right now.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}
