package repository

import (
	"context"
	"sync"
	"time"
)

type rateWindow struct {
	start time.Time
	count int
}

// MemoryRateLimiter is the in-process counterpart of the Redis limiter:
// one fixed window per mobile, every call counted.
type MemoryRateLimiter struct {
	mu          sync.Mutex
	windows     map[string]*rateWindow
	window      time.Duration
	maxRequests int
	now         func() time.Time
}

func NewMemoryRateLimiter(window time.Duration, maxRequests int) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows:     make(map[string]*rateWindow),
		window:      window,
		maxRequests: maxRequests,
		now:         time.Now,
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, mobile string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[mobile]
	if !ok || now.Sub(w.start) >= l.window {
		l.windows[mobile] = &rateWindow{start: now, count: 1}
		return true, nil
	}

	w.count++
	return w.count <= l.maxRequests, nil
}

// SetNow overrides the clock. Test helper.
func (l *MemoryRateLimiter) SetNow(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
