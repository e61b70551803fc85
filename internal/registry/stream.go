package registry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"streamcast/internal/chat"
	"streamcast/internal/hub"
	"streamcast/pkg/types"
)

// maxLines is the feed scrollback cap per stream.
const maxLines = 500

const tokenBytes = 16

// stream holds the full state of one claimed or watched name. Its mutex
// scopes every check-then-act sequence over that state, including
// snapshot capture and event publication, so subscribers can never
// observe a snapshot and then miss an event published after it.
type stream struct {
	mu   sync.Mutex
	name string

	claimed bool
	token   string
	active  bool

	lines         []types.Line
	chatLog       *chat.Log
	startedAt     time.Time
	lastActivity  time.Time
	peakViewers   int
	totalMessages int64

	subs *hub.Subscribers
}

func newStream(name string) *stream {
	return &stream{
		name:    name,
		chatLog: chat.NewLog(),
		subs:    hub.NewSubscribers(),
	}
}

// appendLine adds a feed line, evicting the oldest past the cap.
// Caller holds the stream lock.
func (s *stream) appendLine(line types.Line) {
	s.lines = append(s.lines, line)
	if len(s.lines) > maxLines {
		s.lines = s.lines[len(s.lines)-maxLines:]
	}
}

// snapshot copies the stream state a new subscriber starts from.
// Caller holds the stream lock.
func (s *stream) snapshot(viewers int) types.Snapshot {
	lines := make([]types.Line, len(s.lines))
	copy(lines, s.lines)
	return types.Snapshot{
		Lines:   lines,
		Chat:    s.chatLog.Messages(),
		Viewers: viewers,
		Active:  s.active,
	}
}

// newToken draws a fresh bearer token: 16 random bytes, hex encoded.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
