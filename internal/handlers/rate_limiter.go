package handlers

import (
	"strings"
	"sync"
	"time"
)

type rateLimiter interface {
	Allow(key string) bool
}

// windowLimiter admits at most limit calls per key in each fixed window.
// Windows start at the first call for a key.
type windowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*placementWindow
	sweepAt time.Time
}

type placementWindow struct {
	used    int
	closeAt time.Time
}

func newWindowLimiter(limit int, window time.Duration, now func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &windowLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		windows: make(map[string]*placementWindow),
	}
}

func (l *windowLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	if key = strings.TrimSpace(key); key == "" {
		key = "anonymous"
	}
	at := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(at)

	w, ok := l.windows[key]
	if !ok || !at.Before(w.closeAt) {
		l.windows[key] = &placementWindow{used: 1, closeAt: at.Add(l.window)}
		return true
	}
	if w.used >= l.limit {
		return false
	}
	w.used++
	return true
}

// sweep drops closed windows at most once per window length.
func (l *windowLimiter) sweep(at time.Time) {
	if at.Before(l.sweepAt) {
		return
	}
	for key, w := range l.windows {
		if !at.Before(w.closeAt) {
			delete(l.windows, key)
		}
	}
	l.sweepAt = at.Add(l.window)
}
