// Package session implements the session-scoped broadcast and
// request/response correlation layer. A session groups an arbitrary
// number of duplex connections under a caller-supplied identifier; the
// registry broadcasts frames to every member, routes inbound sample
// replies into the per-session cache, and resolves pending sample
// waiters. This is the only part of the service with real concurrency
// semantics; everything above it is sequential plumbing.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is one duplex channel between a client and the service. A Conn
// is owned by exactly one session at a time. Send must be safe for
// concurrent use; a failing Send marks the member for disconnection.
type Conn interface {
	// ID returns the connection handle, unique within the process.
	ID() string

	// Send writes one frame to the peer. Returns an error if the
	// connection is closed or the peer cannot accept the frame in time.
	Send(data []byte) error

	// Close tears down the underlying channel. Idempotent.
	Close() error
}

const (
	writeWait         = 10 * time.Second
	defaultSendBuffer = 32
)

// wsConn adapts a gorilla websocket connection to Conn. Gorilla
// connections allow only one concurrent writer, so outbound frames go
// through a buffered queue drained by a single writer goroutine. A
// member that lets the queue fill up is reported as failed.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newWSConn(ws *websocket.Conn, sendBuffer int) *wsConn {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	c := &wsConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
	}
	go c.writeLoop()
	return c
}

// writeLoop is the single writer of the underlying connection. A write
// failure closes the connection; the read loop then unwinds and the
// member leaves its session.
func (c *wsConn) writeLoop() {
	for data := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			c.Close()
			return
		}
	}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	return c.ws.Close()
}
