package registry

import (
	"streamcast/internal/chat"
	"streamcast/internal/hub"
	"streamcast/pkg/types"
)

// Subscribe attaches sub to a stream name. Under the stream lock it
// captures the snapshot, registers the sink and publishes the new
// viewer count, so the snapshot frame is always the first on the queue
// and nothing published afterwards is missed. Peak counters move only
// after the snapshot is accepted; a sink that rejects it never counts.
// A subscriber watching another stream is moved: the old stream sees a
// leave first.
func (r *Registry) Subscribe(name string, sub hub.Subscriber) error {
	if !types.IsValidStreamName(name) {
		return types.ErrInvalidName
	}
	if r.bans.Banned(name) {
		return types.ErrBanned
	}

	if prev, ok := r.presence.Current(sub.ID()); ok && prev != name {
		r.unsubscribe(prev, sub.ID())
	}

	s := r.stream(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := r.presence.Join(name, sub.ID(), r.opts.MaxViewers)
	if err != nil {
		return err
	}

	if !sub.TryEnqueue(hub.SnapshotEvent(name, s.snapshot(count))) {
		r.presence.Leave(name, sub.ID())
		sub.Kick("slow_consumer")
		return nil
	}
	s.subs.Add(sub)

	if s.claimed && count > s.peakViewers {
		s.peakViewers = count
	}
	r.stats.ObserveViewers(r.presence.Total())
	r.broadcastLocked(s, hub.ViewerCountEvent(name, count))

	return nil
}

// Disconnect detaches a connection from whatever it is watching.
// Idempotent; connections that never subscribed are a no-op.
func (r *Registry) Disconnect(connID string) {
	if name, ok := r.presence.Current(connID); ok {
		r.unsubscribe(name, connID)
	}
}

// Watching reports the stream a connection is currently subscribed to.
func (r *Registry) Watching(connID string) (string, bool) {
	return r.presence.Current(connID)
}

// unsubscribe removes one membership and tells the remaining viewers.
func (r *Registry) unsubscribe(name, connID string) {
	s, ok := r.lookup(name)
	if !ok {
		r.presence.Leave(name, connID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count, removed := r.presence.Leave(name, connID)
	s.subs.Remove(connID)
	if removed {
		r.broadcastLocked(s, hub.ViewerCountEvent(name, count))
	}
}

// SendChat validates and applies one chat message from a viewer
// connection. The stream must be live; the per-connection cooldown is
// consumed before text validation, so a rejected message still burns
// its slot.
func (r *Registry) SendChat(name, connID, text string) error {
	if !types.IsValidStreamName(name) {
		return types.ErrInvalidName
	}
	s, ok := r.lookup(name)
	if !ok {
		return types.ErrStreamOffline
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.claimed || !s.active {
		return types.ErrStreamOffline
	}
	if !r.limiter.Allow("chat", connID, r.opts.ChatRule) {
		return types.ErrChatCooldown
	}

	cleaned, err := types.ValidateChatText(text)
	if err != nil {
		return err
	}

	msg := types.ChatMessage{
		Pseudonym: chat.Pseudonym(connID),
		Text:      cleaned,
		Time:      r.now().UTC(),
	}
	s.chatLog.Append(msg)
	r.broadcastLocked(s, hub.ChatEvent(name, msg))

	return nil
}
