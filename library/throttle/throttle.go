// Package throttle is an in-process keyed rate limiter.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleTTL = 2 * time.Hour

type entry struct {
	limiter  *rate.Limiter
	limit    int
	window   time.Duration
	lastSeen time.Time
}

// Keyed holds one token bucket per key. Each bucket refills `limit` tokens
// per `window` with a burst of `limit`.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// New create keyed limiter, stale keys are swept while ctx is alive
func New(ctx context.Context) *Keyed {
	k := &Keyed{
		entries: map[string]*entry{},
		now:     time.Now,
	}
	go k.sweep(ctx)

	return k
}

// Allow reports whether one more event for key is allowed
func (k *Keyed) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, nil
	}

	now := k.now()
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok || e.limit != limit || e.window != window {
		e = &entry{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			limit:   limit,
			window:  window,
		}
		k.entries[key] = e
	}
	e.lastSeen = now
	k.mu.Unlock()

	return e.limiter.AllowN(now, 1), nil
}

func (k *Keyed) sweep(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cutoff := k.now().Add(-idleTTL)
		k.mu.Lock()
		for key, e := range k.entries {
			if e.lastSeen.Before(cutoff) {
				delete(k.entries, key)
			}
		}
		k.mu.Unlock()
	}
}
