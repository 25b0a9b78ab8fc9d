// internal/hub/connection.go
package hub

import (
	"context"

	"github.com/google/uuid"
)

// DefaultSendBuffer is the outbound queue depth used when none is configured.
const DefaultSendBuffer = 64

// Connection is the hub's handle on one live client socket.
// The transport drains Out and writes each frame; the hub only ever enqueues.
type Connection struct {
	ID uuid.UUID
	// UserID is the verified account behind the socket, or uuid.Nil for guests.
	UserID uuid.UUID

	Out    chan []byte
	Cancel context.CancelFunc

	// closed and slow are guarded by the hub mutex.
	closed bool
	slow   bool
}

// NewConnection allocates a connection with a fresh id and a queue of the given depth.
// cancel is invoked when the hub gives up on the client.
func NewConnection(userID uuid.UUID, buffer int, cancel context.CancelFunc) *Connection {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	if cancel == nil {
		cancel = func() {}
	}
	return &Connection{
		ID:     uuid.New(),
		UserID: userID,
		Out:    make(chan []byte, buffer),
		Cancel: cancel,
	}
}

// push enqueues msg without blocking. It reports false if the queue is full or closed.
func (c *Connection) push(msg []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.Out <- msg:
		return true
	default:
		return false
	}
}

// close releases the writer. Safe to call more than once.
func (c *Connection) close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.Out)
}
