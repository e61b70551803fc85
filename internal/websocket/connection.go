package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"streamcast/pkg/types"
)

const writeTimeout = 5 * time.Second

// Connection wraps one WebSocket client. All writes flow through a
// single writer goroutine fed by a bounded event queue; producers use
// the non-blocking TryEnqueue, so a stalled client can never block a
// broadcast. Implements hub.Subscriber.
type Connection struct {
	id     string
	ip     string
	conn   *websocket.Conn
	events chan types.Event

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	log       zerolog.Logger
}

// NewConnection wraps an upgraded WebSocket connection and starts its
// writer goroutine. queueSize bounds the outbound event queue.
func NewConnection(conn *websocket.Conn, ip string, queueSize int, logger zerolog.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	c := &Connection{
		id:     id,
		ip:     ip,
		conn:   conn,
		events: make(chan types.Event, queueSize),
		ctx:    ctx,
		cancel: cancel,
		log:    logger.With().Str("conn", id).Logger(),
	}

	go c.writeLoop()

	return c
}

// ID returns the connection's identifier.
func (c *Connection) ID() string { return c.id }

// RemoteIP returns the client address recorded at upgrade time.
func (c *Connection) RemoteIP() string { return c.ip }

// TryEnqueue offers an event to the outbound queue without blocking.
// Returns false when the queue is full; events offered to a closed
// connection are dropped and report success, since its cleanup is
// already underway.
func (c *Connection) TryEnqueue(ev types.Event) bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
	}

	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// Kick closes the connection with a close frame carrying the reason.
// Runs asynchronously so it is safe to call while holding stream locks.
func (c *Connection) Kick(reason string) {
	go func() {
		code := websocket.ClosePolicyViolation
		if reason == "shutting_down" {
			code = websocket.CloseGoingAway
		}
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = c.Close()
	}()
}

// writeLoop is the single writer: it serializes queued events as JSON
// text frames. Exits on write failure or close.
func (c *Connection) writeLoop() {
	for {
		select {
		case ev := <-c.events:
			data, err := json.Marshal(ev)
			if err != nil {
				c.log.Error().Err(err).Str("type", ev.Type).Msg("failed to encode event")
				continue
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Close tears the connection down exactly once. The read pump on the
// socket unblocks with an error, which drives registry cleanup.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Done exposes the connection's lifetime for the ping ticker.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}
