package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Bucket is a token bucket per key holding Max tokens that refill evenly
// over Window. It throttles sustained traffic and allows short bursts, so it
// backs the per-IP request limit and never an attempt quota
type Bucket struct {
	cfg      Config
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

func NewBucket(ctx context.Context, cfg Config) (*Bucket, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	b := &Bucket{
		cfg:      cfg,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}

	go janitor(ctx, cfg.Window, b.sweep)

	return b, nil
}

func (b *Bucket) Allow(_ context.Context, key string) (*Result, error) {
	now := b.now()
	lim := b.get(key, now)

	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)

		return &Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: delay,
		}, nil
	}

	return &Result{
		Allowed:   true,
		Remaining: int(lim.TokensAt(now)),
	}, nil
}

func (b *Bucket) Reset(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.visitors, key)
	return nil
}

func (b *Bucket) get(key string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, exists := b.visitors[key]
	if !exists {
		every := b.cfg.Window / time.Duration(b.cfg.Max)
		v = &visitor{limiter: rate.NewLimiter(rate.Every(every), b.cfg.Max)}
		b.visitors[key] = v
	}

	v.lastSeen = now
	return v.limiter
}

// sweep drops keys idle for longer than a window, their buckets are full again
func (b *Bucket) sweep() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for key, v := range b.visitors {
		if now.Sub(v.lastSeen) > b.cfg.Window {
			delete(b.visitors, key)
		}
	}
}
