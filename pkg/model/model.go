package model

import "time"

// Identity is an authenticated user, immutable for the lifetime of a
// connection once issued by the credential verifier.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatorID string    `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is append-only; never mutated after creation. The ordering key for
// history is (room id, id): ids are time-ordered, so id doubles as the
// timestamp tiebreak.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	FileURL   string    `json:"file_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EmojiReactions is the aggregated view of one emoji on one message.
type EmojiReactions struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}
