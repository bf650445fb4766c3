// Package hub routes room events to subscribed connections. Subscriber sets
// are held per room behind their own locks so traffic in one room never
// serializes against another; each connection carries a bounded outbound
// queue, and a connection that cannot keep up is dropped rather than allowed
// to stall delivery to the rest of the room.
package hub

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/huddlechat/huddle/pkg/metrics"
	"github.com/huddlechat/huddle/pkg/model"
)

// DropFunc is called after a connection is force-dropped on queue overflow,
// with the rooms it was subscribed to at the time. The owner treats it as a
// disconnect.
type DropFunc func(c *Conn, rooms []string)

type roomSet struct {
	// Held exclusively for the whole of a publish so every subscriber
	// observes this room's events in the same relative order.
	mu   sync.Mutex
	subs map[*Conn]bool
}

type Hub struct {
	mu        sync.RWMutex // guards rooms and conns maps
	rooms     map[string]*roomSet
	conns     map[*Conn]bool
	queueSize int
	onDrop    DropFunc
	firehose  *Firehose
}

// New creates a hub. queueSize bounds each connection's outbound queue;
// firehose may be nil.
func New(queueSize int, firehose *Firehose) *Hub {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Hub{
		rooms:     make(map[string]*roomSet),
		conns:     make(map[*Conn]bool),
		queueSize: queueSize,
		firehose:  firehose,
	}
}

// OnDrop installs the forced-drop callback. Must be set before traffic flows.
func (h *Hub) OnDrop(fn DropFunc) { h.onDrop = fn }

// Register adds a connection to the hub's global set.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
	metrics.ConnectionsActive.Inc()
}

// Unregister removes the connection from every room and the global set, then
// closes its outbound queue. Reports false if the connection was already
// gone, so disconnect cleanup runs exactly once between the drop path and the
// transport's close path.
func (h *Hub) Unregister(c *Conn) bool {
	h.mu.Lock()
	if !h.conns[c] {
		h.mu.Unlock()
		return false
	}
	delete(h.conns, c)
	h.mu.Unlock()

	for _, roomID := range c.Rooms() {
		h.Unsubscribe(roomID, c)
	}
	c.close()
	metrics.ConnectionsActive.Dec()
	return true
}

// Subscribe adds the connection to a room's subscriber set. Safe to call
// concurrently with Publish; once subscribed the connection sees every event
// published for the room after the subscription takes effect.
func (h *Hub) Subscribe(roomID string, c *Conn) {
	h.mu.Lock()
	if !h.conns[c] {
		h.mu.Unlock()
		return
	}
	rs, ok := h.rooms[roomID]
	if !ok {
		rs = &roomSet{subs: make(map[*Conn]bool)}
		h.rooms[roomID] = rs
	}
	h.mu.Unlock()

	rs.mu.Lock()
	rs.subs[c] = true
	rs.mu.Unlock()
	if !c.addRoom(roomID) {
		// Lost a race with a concurrent drop; back the subscription out.
		rs.mu.Lock()
		delete(rs.subs, c)
		rs.mu.Unlock()
	}
}

func (h *Hub) Unsubscribe(roomID string, c *Conn) {
	h.mu.RLock()
	rs, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	rs.mu.Lock()
	delete(rs.subs, c)
	rs.mu.Unlock()
	c.removeRoom(roomID)
}

// Publish delivers the event to every subscriber of the room except exclude
// (which may be nil). Delivery is non-blocking per connection: a full queue
// drops that connection, never the publisher.
func (h *Hub) Publish(roomID string, ev model.Event, exclude *Conn) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("hub: failed to marshal %s event: %v", ev.Type, err)
		return
	}

	h.mu.RLock()
	rs, ok := h.rooms[roomID]
	h.mu.RUnlock()

	if ok {
		var dropped []*Conn
		rs.mu.Lock()
		for c := range rs.subs {
			if c == exclude {
				continue
			}
			if !c.trySend(data) {
				dropped = append(dropped, c)
			}
		}
		rs.mu.Unlock()
		for _, c := range dropped {
			h.drop(c)
		}
	}

	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	if h.firehose != nil {
		h.firehose.Offer(data)
	}
}

// PublishAll delivers the event to every registered connection, subscribed or
// not. Used for presence transitions, which are mirrored to all sessions.
func (h *Hub) PublishAll(ev model.Event, exclude *Conn) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("hub: failed to marshal %s event: %v", ev.Type, err)
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	var dropped []*Conn
	for _, c := range targets {
		if !c.trySend(data) {
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		h.drop(c)
	}

	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	if h.firehose != nil {
		h.firehose.Offer(data)
	}
}

func (h *Hub) drop(c *Conn) {
	rooms := c.Rooms()
	if !h.Unregister(c) {
		return
	}
	metrics.ConnectionsDropped.Inc()
	log.Printf("hub: dropped connection for %s (outbound queue overflow)", c.UserID)
	if h.onDrop != nil {
		h.onDrop(c, rooms)
	}
}

// Subscribers reports the current subscriber count for a room.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	rs, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.subs)
}
