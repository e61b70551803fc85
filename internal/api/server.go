package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"streamcast/internal/registry"
	"streamcast/pkg/types"
)

// Registry is the engine surface the HTTP layer drives.
type Registry interface {
	Send(req registry.SendRequest) (registry.SendResult, error)
	RetryAfter(name, clientIP string) time.Duration
	RotateToken(name, oldToken string) (string, error)
	Info(name string) types.StreamInfo
	ListLive() []types.StreamInfo
	Stats() types.GlobalStats
	Sessions() []types.SessionStatus
	Activity() []types.ActivityEntry
	Bans() []string
	EndStream(name string) error
	Ban(name string) error
	Unban(name string) error
	HealthStats() map[string]int
}

// Authorizer decides whether a request may use the admin surface.
type Authorizer func(r *http.Request) bool

// BearerAuthorizer accepts requests presenting the given bearer token.
// An empty token disables the admin surface entirely.
func BearerAuthorizer(token string) Authorizer {
	return func(r *http.Request) bool {
		if token == "" {
			return false
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			return false
		}
		presented := strings.TrimPrefix(auth, prefix)
		return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
	}
}

// Server is the HTTP JSON boundary: request decoding, status mapping
// and serialization only, no stream logic.
type Server struct {
	registry Registry
	auth     Authorizer
	debug    bool
	start    time.Time
	router   *http.ServeMux
	log      zerolog.Logger
}

// NewServer wires all routes. debug controls whether panic detail is
// exposed in 500 responses.
func NewServer(reg Registry, auth Authorizer, debug bool, logger zerolog.Logger) *Server {
	s := &Server{
		registry: reg,
		auth:     auth,
		debug:    debug,
		start:    time.Now(),
		router:   http.NewServeMux(),
		log:      logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/send", s.recoverMiddleware(s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleSend)))))
	s.router.Handle("/api/streams", s.recoverMiddleware(s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleStreams)))))
	s.router.Handle("/api/streams/", s.recoverMiddleware(s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleStreamByName)))))
	s.router.Handle("/api/stats", s.recoverMiddleware(s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleStats)))))
	s.router.Handle("/api/admin/sessions", s.recoverMiddleware(s.corsMiddleware(s.jsonMiddleware(s.adminOnly(http.HandlerFunc(s.handleAdminSessions))))))
	s.router.Handle("/api/admin/activity", s.recoverMiddleware(s.corsMiddleware(s.jsonMiddleware(s.adminOnly(http.HandlerFunc(s.handleAdminActivity))))))
	s.router.Handle("/api/admin/bans", s.recoverMiddleware(s.corsMiddleware(s.jsonMiddleware(s.adminOnly(http.HandlerFunc(s.handleAdminBans))))))
	s.router.Handle("/api/admin/streams/", s.recoverMiddleware(s.corsMiddleware(s.jsonMiddleware(s.adminOnly(http.HandlerFunc(s.handleAdminStreamAction))))))
	s.router.Handle("/health", s.recoverMiddleware(s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck)))))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Request/Response types for JSON serialization
type SendRequest struct {
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
	Text  string `json:"text"`
	Type  string `json:"type"`
}

type SendResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type RotateTokenRequest struct {
	Token string `json:"token"`
}

type RotateTokenResponse struct {
	Token string `json:"token"`
}

type StreamListResponse struct {
	Streams []types.StreamInfo `json:"streams"`
	Count   int                `json:"count"`
}

type SessionListResponse struct {
	Sessions []types.SessionStatus `json:"sessions"`
	Count    int                   `json:"count"`
}

type ActivityResponse struct {
	Activity []types.ActivityEntry `json:"activity"`
	Count    int                   `json:"count"`
}

type BanListResponse struct {
	Bans  []string `json:"bans"`
	Count int      `json:"count"`
}

type ActionResponse struct {
	Status string `json:"status"`
	Stream string `json:"stream"`
}

type HealthResponse struct {
	Status        string         `json:"status"`
	Timestamp     time.Time      `json:"timestamp"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Engine        map[string]int `json:"engine"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleSend serves POST /api/send, the producer ingest path.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	ip := clientIP(r)
	res, err := s.registry.Send(registry.SendRequest{
		Name:     req.Name,
		Token:    req.Token,
		Text:     req.Text,
		Type:     req.Type,
		ClientIP: ip,
	})
	if err != nil {
		reason, code := rejection(err)
		if code == 0 {
			s.log.Error().Err(err).Str("stream", req.Name).Msg("send failed")
			s.sendError(w, "Failed to process send", http.StatusInternalServerError)
			return
		}
		if code == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(s.registry.RetryAfter(req.Name, ip))))
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(SendResponse{Status: "rejected", Reason: reason})
		return
	}

	if res.Created {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(SendResponse{Status: "created", Token: res.Token})
		return
	}

	json.NewEncoder(w).Encode(SendResponse{Status: "accepted"})
}

// handleStreams serves GET /api/streams, the live directory.
func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	streams := s.registry.ListLive()
	json.NewEncoder(w).Encode(StreamListResponse{Streams: streams, Count: len(streams)})
}

// handleStreamByName serves GET /api/streams/{name} and
// POST /api/streams/{name}/token.
func (s *Server) handleStreamByName(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/streams/")
	if path == "" {
		s.sendError(w, "Stream name required", http.StatusBadRequest)
		return
	}
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(s.registry.Info(parts[0]))
	case len(parts) == 2 && parts[1] == "token" && r.Method == http.MethodPost:
		s.rotateToken(w, r, parts[0])
	default:
		s.sendError(w, "Not found", http.StatusNotFound)
	}
}

func (s *Server) rotateToken(w http.ResponseWriter, r *http.Request, name string) {
	var req RotateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	token, err := s.registry.RotateToken(name, req.Token)
	switch {
	case errors.Is(err, types.ErrInvalidName), errors.Is(err, types.ErrUnknownStream):
		s.sendError(w, "Unknown stream", http.StatusNotFound)
	case errors.Is(err, types.ErrInvalidToken):
		s.sendError(w, "Invalid token", http.StatusUnauthorized)
	case err != nil:
		s.log.Error().Err(err).Str("stream", name).Msg("token rotation failed")
		s.sendError(w, "Failed to rotate token", http.StatusInternalServerError)
	default:
		json.NewEncoder(w).Encode(RotateTokenResponse{Token: token})
	}
}

// handleStats serves GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	json.NewEncoder(w).Encode(s.registry.Stats())
}

func (s *Server) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := s.registry.Sessions()
	json.NewEncoder(w).Encode(SessionListResponse{Sessions: sessions, Count: len(sessions)})
}

func (s *Server) handleAdminActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	activity := s.registry.Activity()
	json.NewEncoder(w).Encode(ActivityResponse{Activity: activity, Count: len(activity)})
}

func (s *Server) handleAdminBans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bans := s.registry.Bans()
	json.NewEncoder(w).Encode(BanListResponse{Bans: bans, Count: len(bans)})
}

// handleAdminStreamAction serves POST /api/admin/streams/{name}/end,
// /ban and /unban.
func (s *Server) handleAdminStreamAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/admin/streams/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		s.sendError(w, "Not found", http.StatusNotFound)
		return
	}
	name, action := parts[0], parts[1]

	var err error
	switch action {
	case "end":
		err = s.registry.EndStream(name)
	case "ban":
		err = s.registry.Ban(name)
	case "unban":
		err = s.registry.Unban(name)
	default:
		s.sendError(w, "Not found", http.StatusNotFound)
		return
	}

	switch {
	case errors.Is(err, types.ErrUnknownStream):
		s.sendError(w, "Unknown stream", http.StatusNotFound)
	case errors.Is(err, types.ErrInvalidName):
		s.sendError(w, "Invalid stream name", http.StatusBadRequest)
	case err != nil:
		s.log.Error().Err(err).Str("stream", name).Str("action", action).Msg("admin action failed")
		s.sendError(w, "Admin action failed", http.StatusInternalServerError)
	default:
		s.log.Info().Str("stream", name).Str("action", action).Msg("admin action applied")
		json.NewEncoder(w).Encode(ActionResponse{Status: "ok", Stream: name})
	}
}

// healthCheck serves GET /health. The engine holds no external
// resources, so liveness is unconditional.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	json.NewEncoder(w).Encode(HealthResponse{
		Status:        "ok",
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: int64(time.Since(s.start).Seconds()),
		Engine:        s.registry.HealthStats(),
	})
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// rejection maps engine sentinels to send-rejection reasons and status
// codes. Unknown errors report code 0 and become opaque 500s.
func rejection(err error) (string, int) {
	switch {
	case errors.Is(err, types.ErrInvalidName):
		return "invalid_name", http.StatusBadRequest
	case errors.Is(err, types.ErrBanned):
		return "banned", http.StatusForbidden
	case errors.Is(err, types.ErrInvalidText):
		return "invalid_text", http.StatusBadRequest
	case errors.Is(err, types.ErrInvalidType):
		return "invalid_type", http.StatusBadRequest
	case errors.Is(err, types.ErrInvalidToken):
		return "invalid_token", http.StatusUnauthorized
	case errors.Is(err, types.ErrRateLimited):
		return "rate_limited", http.StatusTooManyRequests
	case errors.Is(err, types.ErrStreamFull):
		return "capacity", http.StatusServiceUnavailable
	default:
		return "", 0
	}
}

// retrySeconds rounds a wait up to whole seconds, never below one.
func retrySeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// adminOnly rejects requests the configured authorizer does not accept.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth(r) {
			s.log.Warn().Str("path", r.URL.Path).Str("ip", clientIP(r)).Msg("admin request rejected")
			s.sendError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware turns handler panics into 500 responses. Panic
// detail reaches the client only in debug mode.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				msg := "Internal server error"
				if s.debug {
					msg = fmt.Sprint(rec)
				}
				s.sendError(w, msg, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
