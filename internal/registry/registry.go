package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"streamcast/internal/hub"
	"streamcast/internal/moderation"
	"streamcast/internal/presence"
	"streamcast/internal/ratelimit"
	"streamcast/internal/stats"
	"streamcast/pkg/types"
)

// Options configures the registry. All values come validated from the
// application config.
type Options struct {
	MaxViewers    int
	StreamTimeout time.Duration
	Location      *time.Location
	SendRule      ratelimit.Rule
	CreateRule    ratelimit.Rule
	ChatRule      ratelimit.Rule
}

// Registry is the engine core: the name -> stream map plus every
// operation that mutates or reads stream state. The registry mutex
// guards only map insertion and lookup; each stream carries its own
// lock, and limiter, presence, bans, activity and stats are self-locked
// and never call back into streams. Lock order is registry -> stream ->
// helper, always.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*stream

	limiter  *ratelimit.Limiter
	presence *presence.Tracker
	bans     *moderation.BanSet
	activity *moderation.ActivityLog
	stats    *stats.Tracker

	opts    Options
	log     zerolog.Logger
	kickLog *rate.Limiter
	now     func() time.Time
}

// New creates a registry. The limiter is shared with the transport
// layer so connection limits and a single janitor cover one table.
func New(limiter *ratelimit.Limiter, logger zerolog.Logger, opts Options) *Registry {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Registry{
		streams:  make(map[string]*stream),
		limiter:  limiter,
		presence: presence.NewTracker(),
		bans:     moderation.NewBanSet(),
		activity: moderation.NewActivityLog(),
		stats:    stats.NewTracker(loc),
		opts:     opts,
		log:      logger.With().Str("component", "registry").Logger(),
		kickLog:  rate.NewLimiter(rate.Every(time.Second), 5),
		now:      time.Now,
	}
}

// SendRequest carries one producer call: a line append, or the claiming
// first send for an unclaimed name.
type SendRequest struct {
	Name     string
	Token    string
	Text     string
	Type     string
	ClientIP string
}

// SendResult reports the outcome of an accepted send. Token is set only
// when the call claimed the name.
type SendResult struct {
	Created bool
	Token   string
}

// Send validates and applies one producer call. The first send for an
// unclaimed name claims it and returns the fresh token without
// appending a line; later sends require the token and append.
func (r *Registry) Send(req SendRequest) (SendResult, error) {
	if !types.IsValidStreamName(req.Name) {
		return SendResult{}, types.ErrInvalidName
	}
	if r.bans.Banned(req.Name) {
		return SendResult{}, types.ErrBanned
	}
	text, err := types.ValidateLineText(req.Text)
	if err != nil {
		return SendResult{}, err
	}
	if !types.IsValidLineType(req.Type) {
		return SendResult{}, types.ErrInvalidType
	}

	s := r.stream(req.Name)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.claimed {
		return r.claimLocked(s, req.ClientIP)
	}

	if req.Token != s.token {
		return SendResult{}, types.ErrInvalidToken
	}
	if !r.limiter.Allow("send", req.Name, r.opts.SendRule) {
		return SendResult{}, types.ErrRateLimited
	}

	now := r.now()
	line := types.Line{Time: now.UTC(), Text: text, Type: req.Type}
	s.appendLine(line)
	s.totalMessages++
	s.lastActivity = now
	wasOffline := !s.active
	s.active = true

	r.stats.MessageAppended()
	if wasOffline {
		r.activity.Record("stream %s back online", s.name)
		r.log.Info().Str("stream", s.name).Msg("stream reactivated")
	}
	r.broadcastLocked(s, hub.LineEvent(s.name, line))

	return SendResult{}, nil
}

// claimLocked turns an unclaimed stream into a live session. Caller
// holds the stream lock, which is what makes the claim race-free: the
// second of two concurrent first-sends finds claimed set and falls
// into token validation.
func (r *Registry) claimLocked(s *stream, clientIP string) (SendResult, error) {
	if !r.limiter.Allow("create", clientIP, r.opts.CreateRule) {
		return SendResult{}, types.ErrRateLimited
	}

	token, err := newToken()
	if err != nil {
		return SendResult{}, fmt.Errorf("claim %s: %w", s.name, err)
	}

	now := r.now()
	s.claimed = true
	s.token = token
	s.active = true
	s.startedAt = now
	s.lastActivity = now
	s.peakViewers = r.presence.Count(s.name)

	r.stats.StreamClaimed()
	r.activity.Record("stream %s claimed", s.name)
	r.log.Info().Str("stream", s.name).Msg("stream claimed")

	return SendResult{Created: true, Token: token}, nil
}

// RetryAfter reports how long a rate-limited sender should wait. Both
// windows a send can trip are checked; windows with slots left report
// zero, so only the one that denied contributes.
func (r *Registry) RetryAfter(name, clientIP string) time.Duration {
	d := r.limiter.Retry("send", name)
	if c := r.limiter.Retry("create", clientIP); c > d {
		d = c
	}
	return d
}

// RotateToken swaps the bearer token for a fresh one. The old token must
// match; nothing changes on mismatch.
func (r *Registry) RotateToken(name, oldToken string) (string, error) {
	if !types.IsValidStreamName(name) {
		return "", types.ErrInvalidName
	}
	s, ok := r.lookup(name)
	if !ok {
		return "", types.ErrUnknownStream
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.claimed {
		return "", types.ErrUnknownStream
	}
	if oldToken != s.token {
		return "", types.ErrInvalidToken
	}

	token, err := newToken()
	if err != nil {
		return "", fmt.Errorf("rotate %s: %w", name, err)
	}
	s.token = token

	r.activity.Record("stream %s rotated its token", name)
	r.log.Info().Str("stream", name).Msg("token rotated")
	return token, nil
}

// Info reports the public status of a name. Unknown, unclaimed and
// malformed names all yield the zero result; status reads never error.
func (r *Registry) Info(name string) types.StreamInfo {
	info := types.StreamInfo{Name: name}
	if !types.IsValidStreamName(name) {
		return info
	}
	s, ok := r.lookup(name)
	if !ok {
		return info
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.claimed {
		return info
	}
	info.Active = s.active
	info.Viewers = r.presence.Count(name)
	started := s.startedAt
	info.StartedAt = &started
	return info
}

// ListLive returns the directory of currently live streams, sorted by
// name.
func (r *Registry) ListLive() []types.StreamInfo {
	out := make([]types.StreamInfo, 0)
	for _, s := range r.allStreams() {
		s.mu.Lock()
		if s.claimed && s.active {
			started := s.startedAt
			out = append(out, types.StreamInfo{
				Name:      s.name,
				Active:    true,
				Viewers:   r.presence.Count(s.name),
				StartedAt: &started,
			})
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Sessions returns every claimed session with its counters, sorted by
// name. Operator view; includes offline and banned sessions.
func (r *Registry) Sessions() []types.SessionStatus {
	out := make([]types.SessionStatus, 0)
	for _, s := range r.allStreams() {
		s.mu.Lock()
		if s.claimed {
			out = append(out, types.SessionStatus{
				Name:          s.name,
				Active:        s.active,
				Banned:        r.bans.Banned(s.name),
				Viewers:       r.presence.Count(s.name),
				StartedAt:     s.startedAt,
				LastActivity:  s.lastActivity,
				PeakViewers:   s.peakViewers,
				TotalMessages: s.totalMessages,
			})
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TimeoutSweep flips sessions idle past the configured timeout to
// offline, publishing one offline event each. Idempotent per tick:
// already-offline sessions are skipped. Reports how many were swept.
func (r *Registry) TimeoutSweep() int {
	if r.opts.StreamTimeout <= 0 {
		return 0
	}

	swept := 0
	for _, s := range r.allStreams() {
		s.mu.Lock()
		if s.claimed && s.active && r.now().Sub(s.lastActivity) > r.opts.StreamTimeout {
			r.goOfflineLocked(s, "inactivity")
			swept++
		}
		s.mu.Unlock()
	}
	if swept > 0 {
		r.log.Info().Int("count", swept).Msg("swept idle streams offline")
	}
	return swept
}

// Ban adds a name to the ban set and forces its session offline. Sends
// and joins for the name are rejected until unban, token or not.
func (r *Registry) Ban(name string) error {
	if !types.IsValidStreamName(name) {
		return types.ErrInvalidName
	}

	newly := r.bans.Ban(name)
	if s, ok := r.lookup(name); ok {
		s.mu.Lock()
		if s.claimed && s.active {
			r.goOfflineLocked(s, "banned")
		}
		s.mu.Unlock()
	}
	if newly {
		r.activity.Record("stream %s banned", name)
		r.log.Warn().Str("stream", name).Msg("stream banned")
	}
	return nil
}

// Unban removes a name from the ban set. The session stays offline
// until its producer sends again.
func (r *Registry) Unban(name string) error {
	if !types.IsValidStreamName(name) {
		return types.ErrInvalidName
	}
	if r.bans.Unban(name) {
		r.activity.Record("stream %s unbanned", name)
		r.log.Info().Str("stream", name).Msg("stream unbanned")
	}
	return nil
}

// EndStream forces a session offline regardless of activity. The name
// stays claimed; an authenticated send reactivates it.
func (r *Registry) EndStream(name string) error {
	if !types.IsValidStreamName(name) {
		return types.ErrInvalidName
	}
	s, ok := r.lookup(name)
	if !ok {
		return types.ErrUnknownStream
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.claimed {
		return types.ErrUnknownStream
	}
	if s.active {
		r.goOfflineLocked(s, "ended by operator")
	}
	return nil
}

// CloseAll kicks every subscriber on every stream. Shutdown path.
func (r *Registry) CloseAll() {
	for _, s := range r.allStreams() {
		s.mu.Lock()
		s.subs.KickAll("shutting_down")
		s.mu.Unlock()
	}
}

// MaybeDailyReset forwards the day-boundary check to the stats tracker.
func (r *Registry) MaybeDailyReset() bool {
	if r.stats.MaybeDailyReset() {
		r.log.Info().Msg("daily stats reset")
		return true
	}
	return false
}

// Stats returns the global counters.
func (r *Registry) Stats() types.GlobalStats {
	return r.stats.Snapshot()
}

// Activity returns the rolling activity log, newest first.
func (r *Registry) Activity() []types.ActivityEntry {
	return r.activity.List()
}

// Bans returns the banned names, sorted.
func (r *Registry) Bans() []string {
	return r.bans.List()
}

// HealthStats returns registry counters for the health endpoint.
func (r *Registry) HealthStats() map[string]int {
	claimed, live := 0, 0
	for _, s := range r.allStreams() {
		s.mu.Lock()
		if s.claimed {
			claimed++
			if s.active {
				live++
			}
		}
		s.mu.Unlock()
	}
	return map[string]int{
		"claimed_streams": claimed,
		"live_streams":    live,
		"viewers":         r.presence.Total(),
		"rate_windows":    r.limiter.Size(),
	}
}

// goOfflineLocked flips a live session offline and tells its
// subscribers. Caller holds the stream lock.
func (r *Registry) goOfflineLocked(s *stream, cause string) {
	s.active = false
	r.activity.Record("stream %s went offline (%s)", s.name, cause)
	r.log.Info().Str("stream", s.name).Str("cause", cause).Msg("stream offline")
	r.broadcastLocked(s, hub.OfflineEvent(s.name))
}

// broadcastLocked fans ev out to the stream's subscribers. Kicked slow
// consumers clean up their presence through their own disconnect path;
// kick logging is throttled so a storm cannot flood the log. Caller
// holds the stream lock.
func (r *Registry) broadcastLocked(s *stream, ev types.Event) {
	for _, sub := range s.subs.Broadcast(ev) {
		if r.kickLog.Allow() {
			r.log.Warn().Str("stream", s.name).Str("conn", sub.ID()).Msg("kicked slow subscriber")
		}
	}
}

// stream returns the state object for name, creating it on first touch.
// Creation here does not claim the name; viewers may watch a name
// before its first send.
func (r *Registry) stream(name string) *stream {
	r.mu.RLock()
	s, ok := r.streams[name]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.streams[name]; ok {
		return s
	}
	s = newStream(name)
	r.streams[name] = s
	return s
}

// lookup returns the state object for name without creating it.
func (r *Registry) lookup(name string) (*stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[name]
	return s, ok
}

// allStreams copies the stream list so iteration does not hold the
// registry lock while taking per-stream locks.
func (r *Registry) allStreams() []*stream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s)
	}
	return out
}
