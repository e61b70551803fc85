package hub

import (
	"time"

	"streamcast/pkg/types"
)

// Event constructors. Keeping these in one place pins the frame shape:
// exactly one payload field set, matching the event type.

// SnapshotEvent is the first frame a new subscriber receives.
func SnapshotEvent(stream string, snap types.Snapshot) types.Event {
	return types.Event{
		Type:     types.EventSnapshot,
		Stream:   stream,
		Snapshot: &snap,
		Time:     time.Now().UTC(),
	}
}

// LineEvent carries one appended feed line.
func LineEvent(stream string, line types.Line) types.Event {
	return types.Event{
		Type:   types.EventLine,
		Stream: stream,
		Line:   &line,
		Time:   time.Now().UTC(),
	}
}

// ChatEvent carries one chat message.
func ChatEvent(stream string, msg types.ChatMessage) types.Event {
	return types.Event{
		Type:   types.EventChat,
		Stream: stream,
		Chat:   &msg,
		Time:   time.Now().UTC(),
	}
}

// ViewerCountEvent announces the stream's new viewer count.
func ViewerCountEvent(stream string, viewers int) types.Event {
	return types.Event{
		Type:    types.EventViewerCount,
		Stream:  stream,
		Viewers: &viewers,
		Time:    time.Now().UTC(),
	}
}

// OfflineEvent announces that the stream went offline.
func OfflineEvent(stream string) types.Event {
	return types.Event{
		Type:   types.EventOffline,
		Stream: stream,
		Time:   time.Now().UTC(),
	}
}

// ErrorEvent reports a rejected client action over the subscriber's own
// connection. Not broadcast.
func ErrorEvent(reason string) types.Event {
	return types.Event{
		Type:   types.EventError,
		Reason: reason,
		Time:   time.Now().UTC(),
	}
}
