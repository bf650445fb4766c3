package hub

import (
	"sync"
)

// Conn is the in-memory representation of one live client session: the
// authenticated identity, the rooms it currently subscribes to, and a bounded
// outbound queue drained by the transport's write loop. It is never
// persisted.
type Conn struct {
	UserID   string
	Username string

	send chan []byte

	mu     sync.Mutex
	rooms  map[string]bool
	closed bool
}

// NewConn creates a connection owned by this hub. The caller must Register it
// before subscribing.
func (h *Hub) NewConn(userID, username string) *Conn {
	return &Conn{
		UserID:   userID,
		Username: username,
		send:     make(chan []byte, h.queueSize),
		rooms:    make(map[string]bool),
	}
}

// Outbound returns the queue the transport write loop drains. The channel is
// closed when the connection is unregistered or dropped.
func (c *Conn) Outbound() <-chan []byte {
	return c.send
}

// In reports whether the connection currently subscribes to the room.
func (c *Conn) In(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[roomID]
}

// Rooms returns a snapshot of the subscribed room ids.
func (c *Conn) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	return out
}

// addRoom records the subscription; reports false if the connection already
// closed so the hub can back the subscription out.
func (c *Conn) addRoom(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.rooms[roomID] = true
	return true
}

func (c *Conn) removeRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
}

// TrySendRaw queues a pre-encoded frame for this connection only. Used for
// error events addressed to the originator.
func (c *Conn) TrySendRaw(data []byte) bool {
	return c.trySend(data)
}

// trySend queues data without blocking. A closed connection swallows the
// event; a full queue reports failure so the hub can drop the connection.
func (c *Conn) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
