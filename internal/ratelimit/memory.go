package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a fixed-window limiter for tests and early
// development. The window clock is injectable for determinism.
type MemoryLimiter struct {
	mu sync.Mutex

	Clock func() time.Time

	windows map[string]*window
}

type window struct {
	count    int
	resetsAt time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{Clock: time.Now, windows: map[string]*window{}}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int, windowDur time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Clock()
	w, ok := l.windows[key]
	if !ok || !w.resetsAt.After(now) {
		w = &window{resetsAt: now.Add(windowDur)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= limit, nil
}
