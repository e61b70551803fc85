package hub

import (
	"streamcast/pkg/types"
)

// Subscriber is a sink for stream events. TryEnqueue must never block:
// it reports false when the sink's queue is full, and the subscriber is
// then removed and kicked. Kick must be safe to call from the
// broadcasting goroutine.
type Subscriber interface {
	ID() string
	TryEnqueue(ev types.Event) bool
	Kick(reason string)
}

// Subscribers is the sink set for a single stream. It is not internally
// locked; the owning stream serializes all access, which is what makes
// snapshot capture and registration atomic with respect to broadcasts.
type Subscribers struct {
	sinks map[string]Subscriber
}

// NewSubscribers creates an empty sink set.
func NewSubscribers() *Subscribers {
	return &Subscribers{
		sinks: make(map[string]Subscriber),
	}
}

// Add registers a sink, replacing any previous sink with the same ID.
func (s *Subscribers) Add(sub Subscriber) {
	s.sinks[sub.ID()] = sub
}

// Remove drops a sink by ID. Idempotent.
func (s *Subscribers) Remove(id string) bool {
	if _, exists := s.sinks[id]; !exists {
		return false
	}
	delete(s.sinks, id)
	return true
}

// Len reports the number of registered sinks.
func (s *Subscribers) Len() int {
	return len(s.sinks)
}

// Broadcast enqueues ev on every sink. Sinks that cannot accept the
// event are removed, kicked, and returned; the broadcast itself never
// blocks on a slow consumer.
func (s *Subscribers) Broadcast(ev types.Event) []Subscriber {
	var kicked []Subscriber
	for id, sub := range s.sinks {
		if !sub.TryEnqueue(ev) {
			delete(s.sinks, id)
			sub.Kick("slow_consumer")
			kicked = append(kicked, sub)
		}
	}
	return kicked
}

// KickAll removes every sink after kicking it with the given reason.
// Used on stream teardown and process shutdown.
func (s *Subscribers) KickAll(reason string) {
	for id, sub := range s.sinks {
		delete(s.sinks, id)
		sub.Kick(reason)
	}
}
