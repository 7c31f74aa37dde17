// ABOUTME: Per-connection state and read/write pumps for websocket clients
// ABOUTME: Identity is bound at creation and never changes for the connection's lifetime

package gateway

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for a single outbound frame write
	writeWait = 10 * time.Second

	// pongWait bounds how long a connection may stay silent
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait
	pingPeriod = (pongWait * 9) / 10

	// sendBufferSize is the per-connection outbound frame buffer
	sendBufferSize = 64

	maxFrameSize = 64 * 1024
)

// Client is one authenticated websocket connection. userID is set during
// the handshake and never reassigned. The rooms set is guarded by the
// hub's mutex. The send channel is never closed: a relay racing a
// disconnect must not crash, so shutdown is signalled via done instead.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	rooms  map[string]struct{}
	logger *slog.Logger
}

// enqueue queues a frame for delivery without blocking.
// Returns false if the connection is shutting down or its buffer is full.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with pings. One writer goroutine per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client events until the connection drops and hands each
// one to the gateway's dispatcher.
func (c *Client) readPump(g *Gateway) {
	defer func() {
		g.disconnect(c)
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("connection read error", "error", err)
			}
			return
		}
		g.dispatch(c, raw)
	}
}
