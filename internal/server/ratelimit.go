package server

import (
	"sync"
	"time"
)

// windowLimiter counts requests per key in fixed, non-overlapping windows.
// Counting is approximate under concurrency and bursts straddling a window
// boundary can admit up to twice the max; acceptable for abuse mitigation,
// not for billing.
type windowLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	now     func() time.Time
	entries map[string]*windowEntry
}

type windowEntry struct {
	count       int
	windowStart time.Time
}

func newWindowLimiter(max int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		max:     max,
		window:  window,
		now:     time.Now,
		entries: map[string]*windowEntry{},
	}
}

// check counts a request under key. It reports whether the request is
// admitted and, when it is not, how long until the window resets.
func (l *windowLimiter) check(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[key]
	if e == nil || now.Sub(e.windowStart) > l.window {
		l.entries[key] = &windowEntry{count: 1, windowStart: now}
		l.sweep(now)
		return true, 0
	}

	e.count++
	if e.count > l.max {
		return false, e.windowStart.Add(l.window).Sub(now)
	}
	return true, 0
}

// sweep drops keys whose window has long passed so the map does not grow
// without bound. Called with the lock held.
func (l *windowLimiter) sweep(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.windowStart) > 2*l.window {
			delete(l.entries, k)
		}
	}
}
