package types

import (
	"time"
)

// Line type constants. Every feed entry carries exactly one of these.
const (
	LineTypeLog     = "log"
	LineTypeTool    = "tool"
	LineTypeThought = "thought"
)

// Event type constants for frames delivered to subscribers.
const (
	EventSnapshot    = "snapshot"
	EventLine        = "line"
	EventChat        = "chat"
	EventViewerCount = "viewer_count"
	EventOffline     = "offline"
	EventError       = "error"
)

// Text limits in runes, not bytes. Line text over the limit is rejected,
// chat text over the limit is truncated.
const (
	MaxLineRunes = 500
	MaxChatRunes = 200
)

// Line is a single feed entry in a stream's scrollback.
type Line struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
	Type string    `json:"type"`
}

// ChatMessage is a single entry in a stream's chat log. Pseudonym is
// derived from the sender's connection, never chosen by the sender.
type ChatMessage struct {
	Pseudonym string    `json:"pseudonym"`
	Text      string    `json:"text"`
	Time      time.Time `json:"time"`
}

// Snapshot is the full stream state a subscriber receives on join,
// before any live event.
type Snapshot struct {
	Lines   []Line        `json:"lines"`
	Chat    []ChatMessage `json:"chat"`
	Viewers int           `json:"viewers"`
	Active  bool          `json:"active"`
}

// Event is one frame on a subscriber's queue. Exactly one payload field
// is set, matching Type.
type Event struct {
	Type     string       `json:"type"`
	Stream   string       `json:"stream,omitempty"`
	Line     *Line        `json:"line,omitempty"`
	Chat     *ChatMessage `json:"chat,omitempty"`
	Snapshot *Snapshot    `json:"snapshot,omitempty"`
	Viewers  *int         `json:"viewers,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Time     time.Time    `json:"time"`
}

// StreamInfo is the public status of a stream name. Names that were
// never claimed report the zero value with Active false.
type StreamInfo struct {
	Name      string     `json:"name"`
	Active    bool       `json:"active"`
	Viewers   int        `json:"viewers"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// SessionStatus is the operator view of a claimed session.
type SessionStatus struct {
	Name          string    `json:"name"`
	Active        bool      `json:"active"`
	Banned        bool      `json:"banned"`
	Viewers       int       `json:"viewers"`
	StartedAt     time.Time `json:"started_at"`
	LastActivity  time.Time `json:"last_activity"`
	PeakViewers   int       `json:"peak_viewers"`
	TotalMessages int64     `json:"total_messages"`
}

// GlobalStats aggregates counters across all streams. Day-scoped fields
// reset when the calendar day changes.
type GlobalStats struct {
	StreamsToday       int       `json:"streams_today"`
	MessagesToday      int64     `json:"messages_today"`
	PeakViewersToday   int       `json:"peak_viewers_today"`
	PeakViewersAllTime int       `json:"peak_viewers_all_time"`
	LastReset          time.Time `json:"last_reset"`
}

// ActivityEntry is one line in the rolling operator activity log.
type ActivityEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}
