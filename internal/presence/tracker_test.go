package presence

import (
	"fmt"
	"sync"
	"testing"

	"streamcast/pkg/types"
)

func TestTracker_JoinAndLeave(t *testing.T) {
	tracker := NewTracker()

	count, err := tracker.Join("Nova1", "conn1", 0)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1 after first join, got %d", count)
	}

	count, err = tracker.Join("Nova1", "conn2", 0)
	if err != nil || count != 2 {
		t.Errorf("Expected count 2 after second join, got %d, %v", count, err)
	}

	count, removed := tracker.Leave("Nova1", "conn1")
	if !removed {
		t.Error("Leave of a joined connection should report removed")
	}
	if count != 1 {
		t.Errorf("Expected count 1 after leave, got %d", count)
	}

	if tracker.Count("Nova1") != 1 {
		t.Errorf("Count() = %d, want 1", tracker.Count("Nova1"))
	}
}

func TestTracker_BalancedJoinsLeaveZero(t *testing.T) {
	tracker := NewTracker()
	const n = 50

	for i := 0; i < n; i++ {
		if _, err := tracker.Join("Nova1", fmt.Sprintf("conn%d", i), 0); err != nil {
			t.Fatalf("Join %d failed: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		tracker.Leave("Nova1", fmt.Sprintf("conn%d", i))
	}

	if tracker.Count("Nova1") != 0 {
		t.Errorf("Expected count 0 after balanced joins/leaves, got %d", tracker.Count("Nova1"))
	}
	if tracker.Total() != 0 {
		t.Errorf("Expected total 0, got %d", tracker.Total())
	}
}

func TestTracker_LeaveIdempotent(t *testing.T) {
	tracker := NewTracker()

	tracker.Join("Nova1", "conn1", 0)
	tracker.Leave("Nova1", "conn1")

	count, removed := tracker.Leave("Nova1", "conn1")
	if removed {
		t.Error("Second leave should be a no-op")
	}
	if count != 0 {
		t.Errorf("Expected count 0, got %d", count)
	}

	// Leaving a stream never joined is equally harmless.
	if _, removed := tracker.Leave("ghost", "conn1"); removed {
		t.Error("Leave of an unknown stream should be a no-op")
	}
}

func TestTracker_LeaveDoesNotRemoveNewerJoin(t *testing.T) {
	tracker := NewTracker()

	// conn1 joined Nova1, moved to Nova2; a stale leave for Nova1 must
	// not touch the Nova2 membership.
	tracker.Join("Nova1", "conn1", 0)
	tracker.Join("Nova2", "conn1", 0)

	if _, removed := tracker.Leave("Nova1", "conn1"); removed {
		t.Error("Stale leave should not remove membership on another stream")
	}
	if tracker.Count("Nova2") != 1 {
		t.Errorf("Nova2 count = %d, want 1", tracker.Count("Nova2"))
	}
}

func TestTracker_RejoinSameStreamNoOp(t *testing.T) {
	tracker := NewTracker()

	tracker.Join("Nova1", "conn1", 0)
	count, err := tracker.Join("Nova1", "conn1", 0)
	if err != nil {
		t.Fatalf("Rejoin failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Rejoin should not double-count, got %d", count)
	}
}

func TestTracker_MoveBetweenStreams(t *testing.T) {
	tracker := NewTracker()

	tracker.Join("Nova1", "conn1", 0)
	tracker.Join("Nova2", "conn1", 0)

	if tracker.Count("Nova1") != 0 {
		t.Errorf("Old stream count = %d, want 0", tracker.Count("Nova1"))
	}
	if tracker.Count("Nova2") != 1 {
		t.Errorf("New stream count = %d, want 1", tracker.Count("Nova2"))
	}
	if tracker.Total() != 1 {
		t.Errorf("Total = %d, want 1 (a connection watches one stream)", tracker.Total())
	}

	name, ok := tracker.Current("conn1")
	if !ok || name != "Nova2" {
		t.Errorf("Current() = %q, %v, want \"Nova2\", true", name, ok)
	}
}

func TestTracker_CapacityLimit(t *testing.T) {
	tracker := NewTracker()
	const max = 3

	for i := 0; i < max; i++ {
		if _, err := tracker.Join("Nova1", fmt.Sprintf("conn%d", i), max); err != nil {
			t.Fatalf("Join %d under cap failed: %v", i, err)
		}
	}

	count, err := tracker.Join("Nova1", "overflow", max)
	if err != types.ErrStreamFull {
		t.Errorf("Join at capacity error = %v, want %v", err, types.ErrStreamFull)
	}
	if count != max {
		t.Errorf("Count after rejected join = %d, want %d", count, max)
	}

	// A slot frees up after a leave.
	tracker.Leave("Nova1", "conn0")
	if _, err := tracker.Join("Nova1", "overflow", max); err != nil {
		t.Errorf("Join after a leave should succeed: %v", err)
	}
}

func TestTracker_Stats(t *testing.T) {
	tracker := NewTracker()

	tracker.Join("Nova1", "conn1", 0)
	tracker.Join("Nova1", "conn2", 0)
	tracker.Join("Nova2", "conn3", 0)

	stats := tracker.Stats()
	if stats["total_viewers"] != 3 {
		t.Errorf("total_viewers = %d, want 3", stats["total_viewers"])
	}
	if stats["watched_streams"] != 2 {
		t.Errorf("watched_streams = %d, want 2", stats["watched_streams"])
	}
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tracker := NewTracker()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := fmt.Sprintf("conn%d", n)
			tracker.Join("Nova1", connID, 0)
			tracker.Count("Nova1")
			tracker.Leave("Nova1", connID)
		}(i)
	}
	wg.Wait()

	if tracker.Count("Nova1") != 0 {
		t.Errorf("Expected count 0 after concurrent churn, got %d", tracker.Count("Nova1"))
	}
	if tracker.Total() != 0 {
		t.Errorf("Expected total 0 after concurrent churn, got %d", tracker.Total())
	}
}
