package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	resetAt time.Time
	count   int
}

// Local is a fixed-window counter map. Counts reset on the first call after
// the window elapses and are lost on process restart.
type Local struct {
	mu      sync.Mutex
	windows map[string]*counter
	now     func() time.Time
}

func NewLocal() *Local {
	return &Local{
		windows: make(map[string]*counter),
		now:     time.Now,
	}
}

func (l *Local) Consume(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if w, ok := l.windows[key]; ok && now.Before(w.resetAt) {
		if w.count >= limit {
			return false, nil
		}

		w.count++

		return true, nil
	}

	l.windows[key] = &counter{count: 1, resetAt: now.Add(window)}

	return true, nil
}
