package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryLimiter keeps sliding windows in process memory. Suitable for
// single-node deployments; replicas each enforce their own limit, so
// multi-node setups should use the Redis limiter instead.
type InMemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	hits []time.Time
	span time.Duration
}

func NewInMemoryLimiter() *InMemoryLimiter {
	return &InMemoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *InMemoryLimiter) Allow(_ context.Context, key string, limit int, span time.Duration) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.windows[key]
	if w == nil {
		w = &window{span: span}
		l.windows[key] = w
	}
	w.expire(now)

	if len(w.hits) >= limit {
		return &Result{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   w.hits[0].Add(span),
			Limit:     limit,
		}, nil
	}

	w.hits = append(w.hits, now)
	return &Result{
		Allowed:   true,
		Remaining: limit - len(w.hits),
		ResetAt:   w.hits[0].Add(span),
		Limit:     limit,
	}, nil
}

func (l *InMemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

func (w *window) expire(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for ; i < len(w.hits); i++ {
		if w.hits[i].After(cutoff) {
			break
		}
	}
	w.hits = w.hits[i:]
}
