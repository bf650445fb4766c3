// Package session owns the lifecycle of one authenticated client session:
// handshake verification, dispatch of inbound events to the stores and the
// hub, and cleanup on disconnect. Durable events persist before they fan out;
// a failed persist is reported to the originator only.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/huddlechat/huddle/pkg/auth"
	"github.com/huddlechat/huddle/pkg/hub"
	"github.com/huddlechat/huddle/pkg/metrics"
	"github.com/huddlechat/huddle/pkg/model"
	"github.com/huddlechat/huddle/pkg/presence"
	"github.com/huddlechat/huddle/pkg/store"
)

type handler func(s *Session, ctx context.Context, ev model.Event) error

// Manager authenticates connections and dispatches their events. One manager
// serves every session in the process.
type Manager struct {
	verifier  *auth.Verifier
	hub       *hub.Hub
	rooms     store.RoomRegistry
	messages  store.MessageLog
	reactions store.ReactionSet
	presence  *presence.Tracker
	mirror    *presence.Mirror // may be nil
	handlers  map[model.EventType]handler
}

func NewManager(verifier *auth.Verifier, h *hub.Hub, rooms store.RoomRegistry, messages store.MessageLog, reactions store.ReactionSet, tracker *presence.Tracker, mirror *presence.Mirror) *Manager {
	m := &Manager{
		verifier:  verifier,
		hub:       h,
		rooms:     rooms,
		messages:  messages,
		reactions: reactions,
		presence:  tracker,
		mirror:    mirror,
	}
	m.handlers = map[model.EventType]handler{
		model.EventJoin:     (*Session).handleJoin,
		model.EventLeave:    (*Session).handleLeave,
		model.EventMessage:  (*Session).handleMessage,
		model.EventTyping:   (*Session).handleTyping,
		model.EventReaction: (*Session).handleReaction,
	}
	h.OnDrop(m.handleDrop)
	return m
}

// PresenceChanged publishes an online/offline transition to every connected
// session. Wire it as the presence tracker's notify callback.
func (m *Manager) PresenceChanged(userID string, online bool) {
	ev := model.Event{Type: model.EventOffline, UserID: userID, Timestamp: time.Now().UTC()}
	if online {
		ev.Type = model.EventOnline
	}
	m.hub.PublishAll(ev, nil)
}

// Connect authenticates the credential and opens a session. The credential is
// checked exactly once, before any event is processed; a missing, malformed
// or invalid credential rejects the connection with no partial session.
func (m *Manager) Connect(token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: no credential presented", model.ErrUnauthorized)
	}
	id, err := m.verifier.Verify(token)
	if err != nil {
		return nil, err
	}

	conn := m.hub.NewConn(id.UserID, id.Username)
	m.hub.Register(conn)
	m.presence.Connect(id.UserID)
	log.Printf("session: %s (%s) connected", id.Username, id.UserID)
	return &Session{m: m, conn: conn, identity: id}, nil
}

// handleDrop is the hub's forced-disconnect path (outbound queue overflow).
// It mirrors Close: remaining subscribers see the same left events whether the
// peer disconnected cleanly or was dropped.
func (m *Manager) handleDrop(c *hub.Conn, rooms []string) {
	ctx := context.Background()
	for _, roomID := range rooms {
		if m.mirror != nil {
			m.mirror.LeaveRoom(ctx, roomID, c.UserID)
		}
		m.hub.Publish(roomID, model.Event{
			Type:      model.EventLeft,
			RoomID:    roomID,
			UserID:    c.UserID,
			Username:  c.Username,
			Timestamp: time.Now().UTC(),
		}, nil)
	}
	m.presence.Disconnect(c.UserID)
}

// Session is one authenticated connection. Not safe for concurrent Dispatch
// calls; the transport's read loop is the single caller.
type Session struct {
	m        *Manager
	conn     *hub.Conn
	identity model.Identity
	closed   bool
}

func (s *Session) Identity() model.Identity { return s.identity }

// Conn exposes the hub connection so the transport can drain its outbound
// queue.
func (s *Session) Conn() *hub.Conn { return s.conn }

// Touch refreshes this identity's presence window. The transport calls it on
// keepalive pongs so a connected-but-quiet client is never swept offline.
func (s *Session) Touch() {
	s.m.presence.Touch(s.identity.UserID)
}

// Dispatch routes one inbound frame. Malformed or unknown input is rejected
// with an error event to the originator; it never tears down the session.
func (s *Session) Dispatch(ctx context.Context, raw []byte) {
	var ev model.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		s.sendError(fmt.Errorf("%w: malformed event", model.ErrValidation))
		return
	}

	h, ok := s.m.handlers[ev.Type]
	if !ok {
		s.sendError(fmt.Errorf("%w: unknown event type %q", model.ErrValidation, ev.Type))
		return
	}

	s.m.presence.Touch(s.identity.UserID)
	if err := h(s, ctx, ev); err != nil {
		log.Printf("session: %s event from %s rejected: %v", ev.Type, s.identity.UserID, err)
		s.sendError(err)
	}
}

// Close releases the session on clean disconnect: unsubscribe everywhere,
// then presence cleanup. Safe to call more than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	rooms := s.conn.Rooms()
	if !s.m.hub.Unregister(s.conn) {
		// Already force-dropped by the hub; its drop path did the cleanup.
		return
	}
	if s.m.mirror != nil {
		ctx := context.Background()
		for _, roomID := range rooms {
			s.m.mirror.LeaveRoom(ctx, roomID, s.identity.UserID)
		}
	}
	for _, roomID := range rooms {
		s.m.hub.Publish(roomID, model.Event{
			Type:      model.EventLeft,
			RoomID:    roomID,
			UserID:    s.identity.UserID,
			Username:  s.identity.Username,
			Timestamp: time.Now().UTC(),
		}, s.conn)
	}
	s.m.presence.Disconnect(s.identity.UserID)
	log.Printf("session: %s disconnected", s.identity.UserID)
}

func (s *Session) handleJoin(ctx context.Context, ev model.Event) error {
	if ev.RoomID == "" {
		return fmt.Errorf("%w: join requires room_id", model.ErrValidation)
	}
	ok, err := s.m.rooms.Exists(ctx, ev.RoomID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: room %s", model.ErrNotFound, ev.RoomID)
	}
	// Joining a room makes the identity a member if it was not one already.
	if err := s.m.rooms.AddMember(ctx, ev.RoomID, s.identity.UserID); err != nil {
		return err
	}

	s.m.hub.Subscribe(ev.RoomID, s.conn)
	if s.m.mirror != nil {
		s.m.mirror.JoinRoom(ctx, ev.RoomID, s.identity.UserID)
	}
	s.m.hub.Publish(ev.RoomID, model.Event{
		Type:      model.EventJoined,
		RoomID:    ev.RoomID,
		UserID:    s.identity.UserID,
		Username:  s.identity.Username,
		Timestamp: time.Now().UTC(),
	}, s.conn)
	return nil
}

func (s *Session) handleLeave(ctx context.Context, ev model.Event) error {
	if ev.RoomID == "" {
		return fmt.Errorf("%w: leave requires room_id", model.ErrValidation)
	}
	if !s.conn.In(ev.RoomID) {
		return fmt.Errorf("%w: %s", model.ErrNotMember, ev.RoomID)
	}

	s.m.hub.Unsubscribe(ev.RoomID, s.conn)
	if s.m.mirror != nil {
		s.m.mirror.LeaveRoom(ctx, ev.RoomID, s.identity.UserID)
	}
	s.m.hub.Publish(ev.RoomID, model.Event{
		Type:      model.EventLeft,
		RoomID:    ev.RoomID,
		UserID:    s.identity.UserID,
		Username:  s.identity.Username,
		Timestamp: time.Now().UTC(),
	}, s.conn)
	return nil
}

func (s *Session) handleMessage(ctx context.Context, ev model.Event) error {
	if !s.conn.In(ev.RoomID) {
		return fmt.Errorf("%w: %s", model.ErrNotMember, ev.RoomID)
	}

	// Persist first; fan-out only happens for messages the log accepted.
	msg, err := s.m.messages.Append(ctx, ev.RoomID, s.identity, ev.Body, ev.FileURL)
	if err != nil {
		return err
	}
	metrics.MessagesPersisted.Inc()

	s.m.hub.Publish(ev.RoomID, model.Event{
		Type:      model.EventMessage,
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		Body:      msg.Body,
		FileURL:   msg.FileURL,
		Timestamp: msg.Timestamp,
	}, nil)
	return nil
}

func (s *Session) handleTyping(ctx context.Context, ev model.Event) error {
	if !s.conn.In(ev.RoomID) {
		return fmt.Errorf("%w: %s", model.ErrNotMember, ev.RoomID)
	}

	// Pure ephemeral fan-out, originator excluded. Nothing to persist.
	s.m.hub.Publish(ev.RoomID, model.Event{
		Type:     model.EventTyping,
		RoomID:   ev.RoomID,
		UserID:   s.identity.UserID,
		Username: s.identity.Username,
		IsTyping: ev.IsTyping,
	}, s.conn)
	return nil
}

func (s *Session) handleReaction(ctx context.Context, ev model.Event) error {
	if ev.MessageID == 0 || ev.Emoji == "" {
		return fmt.Errorf("%w: reaction requires message_id and emoji", model.ErrValidation)
	}

	// The fan-out room comes from the message itself, not the client.
	msg, err := s.m.messages.Get(ctx, ev.MessageID)
	if err != nil {
		return err
	}

	added, err := s.m.reactions.Add(ctx, ev.MessageID, s.identity.UserID, ev.Emoji)
	if err != nil {
		return err
	}
	if !added {
		// Duplicate triple: set semantics make this a no-op, no broadcast.
		return nil
	}

	s.m.hub.Publish(msg.RoomID, model.Event{
		Type:      model.EventReactionAdded,
		MessageID: ev.MessageID,
		RoomID:    msg.RoomID,
		Emoji:     ev.Emoji,
		UserID:    s.identity.UserID,
		Timestamp: time.Now().UTC(),
	}, nil)
	return nil
}

// sendError reports a failed operation to the originating client only. Other
// subscribers never observe failed actions.
func (s *Session) sendError(err error) {
	ev := model.Event{
		Type:   model.EventError,
		Code:   model.ErrorCode(err),
		Detail: err.Error(),
	}
	data, merr := json.Marshal(ev)
	if merr != nil {
		return
	}
	s.conn.TrySendRaw(data)
}
