package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type window struct {
	// hits holds the admitted attempts still inside the window, oldest first
	hits []time.Time
}

// Memory is a sliding window log per key. At most Max attempts are admitted
// in any span of Window, the same contract the Redis limiter keeps
type Memory struct {
	cfg     Config
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemory returns a limiter and starts a janitor that forgets idle keys
// until ctx is cancelled
func NewMemory(ctx context.Context, cfg Config) (*Memory, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &Memory{
		cfg:     cfg,
		windows: make(map[string]*window),
		now:     time.Now,
	}

	go janitor(ctx, cfg.Window, m.sweep)

	return m, nil
}

func (m *Memory) Allow(_ context.Context, key string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	w, exists := m.windows[key]
	if !exists {
		w = &window{}
		m.windows[key] = w
	}
	w.prune(now.Add(-m.cfg.Window))

	if len(w.hits) >= m.cfg.Max {
		return &Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: w.hits[0].Add(m.cfg.Window).Sub(now),
		}, nil
	}

	w.hits = append(w.hits, now)

	return &Result{
		Allowed:   true,
		Remaining: m.cfg.Max - len(w.hits),
	}, nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.windows, key)
	return nil
}

// prune drops hits at or before start
func (w *window) prune(start time.Time) {
	i := 0
	for i < len(w.hits) && !w.hits[i].After(start) {
		i++
	}

	w.hits = w.hits[i:]
}

// sweep drops keys with no attempt left inside the window
func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.now().Add(-m.cfg.Window)
	for key, w := range m.windows {
		w.prune(start)
		if len(w.hits) == 0 {
			delete(m.windows, key)
		}
	}
}

func janitor(ctx context.Context, interval time.Duration, sweep func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Debug("Rate limiter janitor stopped")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
