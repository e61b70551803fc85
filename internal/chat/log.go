package chat

import (
	"streamcast/pkg/types"
)

// MaxMessages is the chat scrollback cap per stream. Older messages are
// evicted first.
const MaxMessages = 200

// Log is the bounded chat scrollback for one stream. Not internally
// locked; the owning stream serializes access.
type Log struct {
	messages []types.ChatMessage
}

// NewLog creates an empty chat log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a message, evicting the oldest when over the cap.
func (l *Log) Append(msg types.ChatMessage) {
	l.messages = append(l.messages, msg)
	if len(l.messages) > MaxMessages {
		l.messages = l.messages[len(l.messages)-MaxMessages:]
	}
}

// Messages returns a copy of the log, oldest first.
func (l *Log) Messages() []types.ChatMessage {
	out := make([]types.ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len reports the number of retained messages.
func (l *Log) Len() int {
	return len(l.messages)
}
