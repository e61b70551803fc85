package hub

import (
	"testing"

	"streamcast/pkg/types"
)

// fakeSink is an in-memory Subscriber with a fixed queue capacity.
type fakeSink struct {
	id       string
	capacity int
	queue    []types.Event
	kicked   string
}

func (f *fakeSink) ID() string { return f.id }

func (f *fakeSink) TryEnqueue(ev types.Event) bool {
	if len(f.queue) >= f.capacity {
		return false
	}
	f.queue = append(f.queue, ev)
	return true
}

func (f *fakeSink) Kick(reason string) { f.kicked = reason }

func TestSubscribers_BroadcastDeliversToAll(t *testing.T) {
	subs := NewSubscribers()
	a := &fakeSink{id: "a", capacity: 10}
	b := &fakeSink{id: "b", capacity: 10}
	subs.Add(a)
	subs.Add(b)

	kicked := subs.Broadcast(LineEvent("Nova1", types.Line{Text: "hello", Type: types.LineTypeLog}))

	if len(kicked) != 0 {
		t.Errorf("Expected no kicked subscribers, got %d", len(kicked))
	}
	if len(a.queue) != 1 || len(b.queue) != 1 {
		t.Errorf("Expected 1 event per sink, got a=%d b=%d", len(a.queue), len(b.queue))
	}
	if a.queue[0].Type != types.EventLine || a.queue[0].Line.Text != "hello" {
		t.Errorf("Unexpected event payload: %+v", a.queue[0])
	}
}

func TestSubscribers_SlowConsumerKicked(t *testing.T) {
	subs := NewSubscribers()
	slow := &fakeSink{id: "slow", capacity: 0}
	fast := &fakeSink{id: "fast", capacity: 10}
	subs.Add(slow)
	subs.Add(fast)

	kicked := subs.Broadcast(OfflineEvent("Nova1"))

	if len(kicked) != 1 || kicked[0].ID() != "slow" {
		t.Fatalf("Expected the slow sink to be kicked, got %v", kicked)
	}
	if slow.kicked != "slow_consumer" {
		t.Errorf("Kick reason = %q, want slow_consumer", slow.kicked)
	}
	if subs.Len() != 1 {
		t.Errorf("Expected 1 remaining sink, got %d", subs.Len())
	}
	if len(fast.queue) != 1 {
		t.Errorf("Fast sink should still receive the event, got %d", len(fast.queue))
	}

	// Later broadcasts no longer see the kicked sink.
	subs.Broadcast(OfflineEvent("Nova1"))
	if len(fast.queue) != 2 {
		t.Errorf("Expected 2 events on fast sink, got %d", len(fast.queue))
	}
}

func TestSubscribers_AddReplacesSameID(t *testing.T) {
	subs := NewSubscribers()
	old := &fakeSink{id: "conn1", capacity: 10}
	neu := &fakeSink{id: "conn1", capacity: 10}
	subs.Add(old)
	subs.Add(neu)

	if subs.Len() != 1 {
		t.Fatalf("Expected 1 sink after replacement, got %d", subs.Len())
	}
	subs.Broadcast(OfflineEvent("Nova1"))
	if len(old.queue) != 0 {
		t.Error("Replaced sink should not receive events")
	}
	if len(neu.queue) != 1 {
		t.Error("Replacement sink should receive events")
	}
}

func TestSubscribers_RemoveIdempotent(t *testing.T) {
	subs := NewSubscribers()
	subs.Add(&fakeSink{id: "conn1", capacity: 10})

	if !subs.Remove("conn1") {
		t.Error("First remove should report true")
	}
	if subs.Remove("conn1") {
		t.Error("Second remove should report false")
	}
	if subs.Remove("never_added") {
		t.Error("Removing an unknown ID should report false")
	}
}

func TestSubscribers_KickAll(t *testing.T) {
	subs := NewSubscribers()
	a := &fakeSink{id: "a", capacity: 10}
	b := &fakeSink{id: "b", capacity: 10}
	subs.Add(a)
	subs.Add(b)

	subs.KickAll("shutting_down")

	if subs.Len() != 0 {
		t.Errorf("Expected empty set after KickAll, got %d", subs.Len())
	}
	if a.kicked != "shutting_down" || b.kicked != "shutting_down" {
		t.Errorf("Expected both sinks kicked with reason, got %q and %q", a.kicked, b.kicked)
	}
}

func TestEventConstructors_PayloadMatchesType(t *testing.T) {
	n := 7
	tests := []struct {
		name  string
		event types.Event
		check func(types.Event) bool
	}{
		{"snapshot", SnapshotEvent("s", types.Snapshot{Viewers: n}), func(e types.Event) bool {
			return e.Type == types.EventSnapshot && e.Snapshot != nil && e.Snapshot.Viewers == n
		}},
		{"line", LineEvent("s", types.Line{Text: "x"}), func(e types.Event) bool {
			return e.Type == types.EventLine && e.Line != nil && e.Line.Text == "x"
		}},
		{"chat", ChatEvent("s", types.ChatMessage{Text: "y"}), func(e types.Event) bool {
			return e.Type == types.EventChat && e.Chat != nil && e.Chat.Text == "y"
		}},
		{"viewer_count", ViewerCountEvent("s", n), func(e types.Event) bool {
			return e.Type == types.EventViewerCount && e.Viewers != nil && *e.Viewers == n
		}},
		{"offline", OfflineEvent("s"), func(e types.Event) bool {
			return e.Type == types.EventOffline && e.Line == nil && e.Chat == nil
		}},
		{"error", ErrorEvent("cooldown"), func(e types.Event) bool {
			return e.Type == types.EventError && e.Reason == "cooldown"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.event) {
				t.Errorf("Constructor produced wrong frame: %+v", tt.event)
			}
		})
	}
}
