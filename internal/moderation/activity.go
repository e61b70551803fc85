package moderation

import (
	"fmt"
	"sync"
	"time"

	"streamcast/pkg/types"
)

// MaxActivityEntries bounds the operator activity log.
const MaxActivityEntries = 50

// ActivityLog is a rolling record of notable moderation and lifecycle
// events: claims, offline transitions, bans, token rotations.
type ActivityLog struct {
	mu      sync.Mutex
	entries []types.ActivityEntry
	now     func() time.Time
}

// NewActivityLog creates an empty activity log.
func NewActivityLog() *ActivityLog {
	return &ActivityLog{
		now: time.Now,
	}
}

// Record appends a formatted entry, evicting the oldest past the cap.
func (a *ActivityLog) Record(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append(a.entries, types.ActivityEntry{
		Time:    a.now().UTC(),
		Message: fmt.Sprintf(format, args...),
	})
	if len(a.entries) > MaxActivityEntries {
		a.entries = a.entries[len(a.entries)-MaxActivityEntries:]
	}
}

// List returns retained entries, newest first.
func (a *ActivityLog) List() []types.ActivityEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]types.ActivityEntry, len(a.entries))
	for i, entry := range a.entries {
		out[len(a.entries)-1-i] = entry
	}
	return out
}

// Len reports the number of retained entries.
func (a *ActivityLog) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
