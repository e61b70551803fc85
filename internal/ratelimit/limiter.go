package ratelimit

import (
	"sync"
	"time"
)

// Rule is one fixed-window limit: at most Max hits per Window.
// A Rule with Max <= 0 disables the limit.
type Rule struct {
	Window time.Duration
	Max    int
}

// Limiter tracks fixed windows for independent namespaces sharing one
// table. Keys self-reset when their window expires; Prune removes
// expired entries so the table does not grow with unique keys.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count     int
	max       int
	resetTime time.Time
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow consumes one slot for key within namespace ns. A missing or
// expired window starts fresh with count 1; a full window denies
// without mutating state.
func (l *Limiter) Allow(ns, key string, rule Rule) bool {
	if rule.Max <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := ns + ":" + key

	w, exists := l.windows[k]
	if !exists || !now.Before(w.resetTime) {
		l.windows[k] = &window{
			count:     1,
			max:       rule.Max,
			resetTime: now.Add(rule.Window),
		}
		return true
	}

	w.max = rule.Max
	if w.count >= rule.Max {
		return false
	}

	w.count++
	return true
}

// Retry reports how long until the window for ns/key resets, and zero
// unless that window is exhausted. A live window with slots left never
// denied anyone, so it must not contribute to a Retry-After answer.
func (l *Limiter) Retry(ns, key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[ns+":"+key]
	if !exists || w.count < w.max {
		return 0
	}
	remaining := w.resetTime.Sub(l.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Prune removes expired windows and reports how many were dropped.
// Expired windows reset on their next Allow anyway, so pruning never
// changes a decision.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, w := range l.windows {
		if !now.Before(w.resetTime) {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

// Size reports the number of live windows.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
