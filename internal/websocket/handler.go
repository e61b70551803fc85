package websocket

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"streamcast/internal/hub"
	"streamcast/internal/ratelimit"
	"streamcast/pkg/types"
)

const (
	pingInterval  = 30 * time.Second
	pongWait      = 60 * time.Second
	maxFrameBytes = 4096
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Registry is the stream engine surface the WebSocket transport drives.
type Registry interface {
	Subscribe(name string, sub hub.Subscriber) error
	SendChat(name, connID, text string) error
	Watching(connID string) (string, bool)
	Disconnect(connID string)
}

// Handler upgrades consumer connections and runs their read loops.
type Handler struct {
	registry    Registry
	limiter     *ratelimit.Limiter
	connectRule ratelimit.Rule
	queueSize   int
	log         zerolog.Logger
}

// NewHandler creates a WebSocket handler. connectRule is the per-IP
// connection limit checked before upgrading; queueSize bounds each
// connection's outbound event queue.
func NewHandler(registry Registry, limiter *ratelimit.Limiter, connectRule ratelimit.Rule, queueSize int, logger zerolog.Logger) *Handler {
	return &Handler{
		registry:    registry,
		limiter:     limiter,
		connectRule: connectRule,
		queueSize:   queueSize,
		log:         logger.With().Str("component", "websocket").Logger(),
	}
}

// clientFrame is the inbound message shape. Unknown types get an error
// event back rather than a closed connection.
type clientFrame struct {
	Type   string `json:"type"`
	Stream string `json:"stream,omitempty"`
	Text   string `json:"text,omitempty"`
}

// HandleWebSocket serves GET /ws. A `stream` query parameter subscribes
// the connection immediately after upgrade.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !h.limiter.Allow("connect", ip, h.connectRule) {
		http.Error(w, "connection rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("ip", ip).Msg("upgrade failed")
		return
	}

	c := NewConnection(conn, ip, h.queueSize, h.log)
	h.log.Debug().Str("conn", c.ID()).Str("ip", ip).Msg("connected")

	if name := r.URL.Query().Get("stream"); name != "" {
		if err := h.registry.Subscribe(name, c); err != nil {
			h.sendError(c, err)
		}
	}

	h.readLoop(c)
}

// readLoop consumes client frames until the socket errors or closes.
// Cleanup runs here on the connection's own goroutine, so a kicked
// connection also releases its presence slot.
func (h *Handler) readLoop(c *Connection) {
	defer func() {
		h.registry.Disconnect(c.ID())
		_ = c.Close()
		h.log.Debug().Str("conn", c.ID()).Msg("disconnected")
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.pingLoop(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Str("conn", c.ID()).Msg("read failed")
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.TryEnqueue(hub.ErrorEvent("bad_frame"))
			continue
		}
		h.handleFrame(c, frame)
	}
}

func (h *Handler) handleFrame(c *Connection, frame clientFrame) {
	switch frame.Type {
	case "subscribe":
		if err := h.registry.Subscribe(frame.Stream, c); err != nil {
			h.sendError(c, err)
		}
	case "chat":
		name, ok := h.registry.Watching(c.ID())
		if !ok {
			c.TryEnqueue(hub.ErrorEvent("not_subscribed"))
			return
		}
		if err := h.registry.SendChat(name, c.ID(), frame.Text); err != nil {
			h.sendError(c, err)
		}
	default:
		c.TryEnqueue(hub.ErrorEvent("bad_frame"))
	}
}

// pingLoop keeps the heartbeat going for the connection's lifetime.
// WriteControl is safe to call concurrently with the writer goroutine.
func (h *Handler) pingLoop(c *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = c.Close()
				return
			}
		case <-c.Done():
			return
		}
	}
}

func (h *Handler) sendError(c *Connection, err error) {
	c.TryEnqueue(hub.ErrorEvent(errorReason(err)))
}

// errorReason maps engine sentinels onto wire reason strings.
func errorReason(err error) string {
	switch {
	case errors.Is(err, types.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, types.ErrBanned):
		return "banned"
	case errors.Is(err, types.ErrStreamFull):
		return "stream_full"
	case errors.Is(err, types.ErrStreamOffline):
		return "stream_offline"
	case errors.Is(err, types.ErrChatCooldown):
		return "chat_cooldown"
	case errors.Is(err, types.ErrInvalidText):
		return "invalid_text"
	case errors.Is(err, types.ErrRateLimited):
		return "rate_limited"
	default:
		return "internal_error"
	}
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
