package presence

import (
	"sync"

	"streamcast/pkg/types"
)

// Tracker records which connections are watching which stream. Pure
// membership tracking; stream state and event delivery live elsewhere.
// A connection watches at most one stream at a time.
type Tracker struct {
	mu       sync.RWMutex
	viewers  map[string]map[string]struct{} // stream name -> connID set
	watching map[string]string              // connID -> stream name
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		viewers:  make(map[string]map[string]struct{}),
		watching: make(map[string]string),
	}
}

// Join adds connID to name's viewer set and returns the new count.
// Joining the stream already watched is a no-op. Joining while still
// recorded on another stream moves the membership; callers are expected
// to have completed the leave on the old stream first. Returns
// ErrStreamFull when the stream is at max (max <= 0 means no cap).
func (t *Tracker) Join(name, connID string, max int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, exists := t.watching[connID]; exists {
		if prev == name {
			return len(t.viewers[name]), nil
		}
		t.removeLocked(prev, connID)
		delete(t.watching, connID)
	}

	set := t.viewers[name]
	if max > 0 && len(set) >= max {
		return len(set), types.ErrStreamFull
	}

	if set == nil {
		set = make(map[string]struct{})
		t.viewers[name] = set
	}
	set[connID] = struct{}{}
	t.watching[connID] = name

	return len(set), nil
}

// Leave removes connID from name's viewer set. Idempotent: leaving a
// stream the connection is not in reports removed=false and changes
// nothing, so a disconnect racing a fresh join on the same name never
// removes the new membership.
func (t *Tracker) Leave(name, connID string) (count int, removed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.watching[connID] != name {
		return len(t.viewers[name]), false
	}
	t.removeLocked(name, connID)
	delete(t.watching, connID)
	return len(t.viewers[name]), true
}

// removeLocked drops connID from name's set and cleans up empty sets.
func (t *Tracker) removeLocked(name, connID string) {
	if set, exists := t.viewers[name]; exists {
		delete(set, connID)
		if len(set) == 0 {
			delete(t.viewers, name)
		}
	}
}

// Current reports which stream connID is watching.
func (t *Tracker) Current(connID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	name, exists := t.watching[connID]
	return name, exists
}

// Count reports the viewer count for one stream.
func (t *Tracker) Count(name string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.viewers[name])
}

// Total reports concurrent viewers across all streams.
func (t *Tracker) Total() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.watching)
}

// Stats returns tracker counters for monitoring.
func (t *Tracker) Stats() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return map[string]int{
		"total_viewers":   len(t.watching),
		"watched_streams": len(t.viewers),
	}
}
