package model

import "time"

type EventType string

// Client -> server event kinds.
const (
	EventJoin     EventType = "join"
	EventLeave    EventType = "leave"
	EventMessage  EventType = "message"
	EventTyping   EventType = "typing"
	EventReaction EventType = "reaction"
)

// Server -> client event kinds.
const (
	EventJoined        EventType = "joined"
	EventLeft          EventType = "left"
	EventReactionAdded EventType = "reaction_added"
	EventOnline        EventType = "online"
	EventOffline       EventType = "offline"
	EventError         EventType = "error"
)

// Event is the single JSON envelope exchanged over a session. Fields are
// populated per event type; unused fields are omitted on the wire.
type Event struct {
	Type      EventType `json:"type"`
	ID        int64     `json:"id,omitempty"`
	RoomID    string    `json:"room_id,omitempty"`
	MessageID int64     `json:"message_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Body      string    `json:"body,omitempty"`
	FileURL   string    `json:"file_url,omitempty"`
	Emoji     string    `json:"emoji,omitempty"`
	IsTyping  bool      `json:"is_typing,omitempty"`
	Code      string    `json:"code,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
