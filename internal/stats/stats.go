package stats

import (
	"sync"
	"time"

	"streamcast/pkg/types"
)

// Tracker aggregates counters across all streams. Day-scoped counters
// reset when the calendar day changes in the configured location;
// all-time peaks survive resets. Nothing here is persisted.
type Tracker struct {
	mu                 sync.Mutex
	streamsToday       int
	messagesToday      int64
	peakViewersToday   int
	peakViewersAllTime int
	lastReset          time.Time
	location           *time.Location
	now                func() time.Time
}

// NewTracker creates a tracker anchored to loc for day boundaries.
func NewTracker(loc *time.Location) *Tracker {
	t := &Tracker{
		location: loc,
		now:      time.Now,
	}
	t.lastReset = t.now()
	return t
}

// StreamClaimed counts a newly claimed stream.
func (t *Tracker) StreamClaimed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streamsToday++
}

// MessageAppended counts one accepted feed line.
func (t *Tracker) MessageAppended() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messagesToday++
}

// ObserveViewers records the current global concurrent viewer total and
// raises the daily and all-time peaks when exceeded.
func (t *Tracker) ObserveViewers(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if total > t.peakViewersToday {
		t.peakViewersToday = total
	}
	if total > t.peakViewersAllTime {
		t.peakViewersAllTime = total
	}
}

// MaybeDailyReset zeroes the day-scoped counters when the calendar day
// has changed since the last reset. The comparison is day-based, not
// clock-tick based, so a tick that lands late still triggers the reset.
// Reports whether a reset fired.
func (t *Tracker) MaybeDailyReset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().In(t.location)
	last := t.lastReset.In(t.location)

	ny, nm, nd := now.Date()
	ly, lm, ld := last.Date()
	if ny == ly && nm == lm && nd == ld {
		return false
	}

	t.streamsToday = 0
	t.messagesToday = 0
	t.peakViewersToday = 0
	t.lastReset = t.now()
	return true
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() types.GlobalStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return types.GlobalStats{
		StreamsToday:       t.streamsToday,
		MessagesToday:      t.messagesToday,
		PeakViewersToday:   t.peakViewersToday,
		PeakViewersAllTime: t.peakViewersAllTime,
		LastReset:          t.lastReset,
	}
}
