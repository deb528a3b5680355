package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// socket is the subset of *websocket.Conn the relay writes through.
type socket interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Conn is an ephemeral handle for one live websocket connection. UserID is
// zero for anonymous connections. The registry owns the handle for its
// lifetime; it is discarded on disconnect, never reused.
type Conn struct {
	ID          string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time

	mu     sync.Mutex
	sock   socket
	closed bool
}

// NewConn wraps a websocket connection. userID zero marks the connection
// anonymous.
func NewConn(sock socket, userID int) *Conn {
	return &Conn{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		sock:        sock,
	}
}

// Anonymous reports whether the connection carries no resolved identity.
func (c *Conn) Anonymous() bool {
	return c.UserID == 0
}

// Send marshals the event and writes it as a single text frame. gorilla
// permits one concurrent writer, so writes serialize on the conn mutex.
func (c *Conn) Send(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.sock.WriteMessage(websocket.TextMessage, payload)
}

// Close shuts the underlying socket down. Safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.sock.Close()
}
