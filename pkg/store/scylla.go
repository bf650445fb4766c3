package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/huddlechat/huddle/pkg/db"
	"github.com/huddlechat/huddle/pkg/model"
	"github.com/huddlechat/huddle/pkg/snowflake"
)

// Scylla implements the store contracts on ScyllaDB. Messages cluster under
// their room partition in descending id order; messages_by_id is the lookup
// table that lets reactions derive a message's room. Reaction set semantics
// come from lightweight transactions (INSERT/DELETE IF [NOT] EXISTS).
type Scylla struct {
	session *db.Session
	ids     *snowflake.Node
}

func NewScylla(session *db.Session, ids *snowflake.Node) *Scylla {
	return &Scylla{session: session, ids: ids}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrStore, op, err)
}

func (s *Scylla) Append(ctx context.Context, roomID string, sender model.Identity, body, fileURL string) (model.Message, error) {
	if err := validateContent(body, fileURL); err != nil {
		return model.Message{}, err
	}
	ok, err := s.Exists(ctx, roomID)
	if err != nil {
		return model.Message{}, err
	}
	if !ok {
		return model.Message{}, fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}

	id := s.ids.Generate()
	msg := model.Message{
		ID:        id,
		RoomID:    roomID,
		UserID:    sender.UserID,
		Username:  sender.Username,
		Body:      body,
		FileURL:   fileURL,
		Timestamp: snowflake.Timestamp(id),
	}

	q := `INSERT INTO messages (room_id, id, user_id, username, body, file_url, ts) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if err := s.session.Query(q, msg.RoomID, msg.ID, msg.UserID, msg.Username, msg.Body, msg.FileURL, msg.Timestamp).WithContext(ctx).Exec(); err != nil {
		return model.Message{}, storeErr("append message", err)
	}
	q = `INSERT INTO messages_by_id (id, room_id, user_id, username, body, file_url, ts) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if err := s.session.Query(q, msg.ID, msg.RoomID, msg.UserID, msg.Username, msg.Body, msg.FileURL, msg.Timestamp).WithContext(ctx).Exec(); err != nil {
		return model.Message{}, storeErr("index message", err)
	}
	return msg, nil
}

func (s *Scylla) History(ctx context.Context, roomID string, before int64, limit int) ([]model.Message, error) {
	ok, err := s.Exists(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}
	if limit <= 0 {
		limit = 50
	}

	var iter *gocql.Iter
	if before > 0 {
		q := `SELECT room_id, id, user_id, username, body, file_url, ts FROM messages WHERE room_id = ? AND id < ? LIMIT ?`
		iter = s.session.Query(q, roomID, before, limit).WithContext(ctx).Iter()
	} else {
		q := `SELECT room_id, id, user_id, username, body, file_url, ts FROM messages WHERE room_id = ? LIMIT ?`
		iter = s.session.Query(q, roomID, limit).WithContext(ctx).Iter()
	}

	// Rows arrive newest-first (descending clustering); reverse to ascending.
	var messages []model.Message
	var m model.Message
	for iter.Scan(&m.RoomID, &m.ID, &m.UserID, &m.Username, &m.Body, &m.FileURL, &m.Timestamp) {
		messages = append(messages, m)
	}
	if err := iter.Close(); err != nil {
		return nil, storeErr("history", err)
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })
	return messages, nil
}

func (s *Scylla) Get(ctx context.Context, messageID int64) (model.Message, error) {
	var m model.Message
	q := `SELECT id, room_id, user_id, username, body, file_url, ts FROM messages_by_id WHERE id = ?`
	err := s.session.Query(q, messageID).WithContext(ctx).Scan(&m.ID, &m.RoomID, &m.UserID, &m.Username, &m.Body, &m.FileURL, &m.Timestamp)
	if err == gocql.ErrNotFound {
		return model.Message{}, fmt.Errorf("%w: message %d", model.ErrNotFound, messageID)
	}
	if err != nil {
		return model.Message{}, storeErr("get message", err)
	}
	return m, nil
}

func (s *Scylla) Add(ctx context.Context, messageID int64, userID, emoji string) (bool, error) {
	if userID == "" || emoji == "" {
		return false, fmt.Errorf("%w: reaction requires user and emoji", model.ErrValidation)
	}
	if _, err := s.Get(ctx, messageID); err != nil {
		return false, err
	}

	q := `INSERT INTO reactions (message_id, user_id, emoji, created_at) VALUES (?, ?, ?, ?) IF NOT EXISTS`
	applied, err := s.session.Query(q, messageID, userID, emoji, time.Now().UTC()).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return false, storeErr("add reaction", err)
	}
	return applied, nil
}

func (s *Scylla) Remove(ctx context.Context, messageID int64, userID, emoji string) (bool, error) {
	q := `DELETE FROM reactions WHERE message_id = ? AND user_id = ? AND emoji = ? IF EXISTS`
	applied, err := s.session.Query(q, messageID, userID, emoji).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return false, storeErr("remove reaction", err)
	}
	return applied, nil
}

func (s *Scylla) ReactionsFor(ctx context.Context, messageID int64) (map[string]model.EmojiReactions, error) {
	q := `SELECT emoji, user_id FROM reactions WHERE message_id = ?`
	iter := s.session.Query(q, messageID).WithContext(ctx).Iter()

	byEmoji := make(map[string][]string)
	var emoji, userID string
	for iter.Scan(&emoji, &userID) {
		byEmoji[emoji] = append(byEmoji[emoji], userID)
	}
	if err := iter.Close(); err != nil {
		return nil, storeErr("reactions", err)
	}

	out := make(map[string]model.EmojiReactions, len(byEmoji))
	for emoji, users := range byEmoji {
		sort.Strings(users)
		out[emoji] = model.EmojiReactions{Count: len(users), Users: users}
	}
	return out, nil
}

func (s *Scylla) Create(ctx context.Context, name string, creator model.Identity) (model.Room, error) {
	if name == "" {
		return model.Room{}, fmt.Errorf("%w: room name required", model.ErrValidation)
	}

	room := model.Room{
		ID:        uuid.NewString(),
		Name:      name,
		CreatorID: creator.UserID,
		CreatedAt: time.Now().UTC(),
	}
	q := `INSERT INTO rooms (id, name, creator_id, created_at) VALUES (?, ?, ?, ?)`
	if err := s.session.Query(q, room.ID, room.Name, room.CreatorID, room.CreatedAt).WithContext(ctx).Exec(); err != nil {
		return model.Room{}, storeErr("create room", err)
	}

	q = `INSERT INTO room_members (room_id, user_id, joined_at) VALUES (?, ?, ?)`
	if err := s.session.Query(q, room.ID, creator.UserID, room.CreatedAt).WithContext(ctx).Exec(); err != nil {
		return model.Room{}, storeErr("add creator membership", err)
	}
	return room, nil
}

func (s *Scylla) Room(ctx context.Context, roomID string) (model.Room, error) {
	var r model.Room
	q := `SELECT id, name, creator_id, created_at FROM rooms WHERE id = ?`
	err := s.session.Query(q, roomID).WithContext(ctx).Scan(&r.ID, &r.Name, &r.CreatorID, &r.CreatedAt)
	if err == gocql.ErrNotFound {
		return model.Room{}, fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}
	if err != nil {
		return model.Room{}, storeErr("get room", err)
	}
	return r, nil
}

func (s *Scylla) List(ctx context.Context) ([]model.Room, error) {
	q := `SELECT id, name, creator_id, created_at FROM rooms`
	iter := s.session.Query(q).WithContext(ctx).Iter()

	var rooms []model.Room
	var r model.Room
	for iter.Scan(&r.ID, &r.Name, &r.CreatorID, &r.CreatedAt) {
		rooms = append(rooms, r)
	}
	if err := iter.Close(); err != nil {
		return nil, storeErr("list rooms", err)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	return rooms, nil
}

func (s *Scylla) Exists(ctx context.Context, roomID string) (bool, error) {
	var id string
	q := `SELECT id FROM rooms WHERE id = ?`
	err := s.session.Query(q, roomID).WithContext(ctx).Scan(&id)
	if err == gocql.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, storeErr("room exists", err)
	}
	return true, nil
}

func (s *Scylla) Delete(ctx context.Context, roomID string) error {
	ok, err := s.Exists(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}
	if err := s.session.Query(`DELETE FROM room_members WHERE room_id = ?`, roomID).WithContext(ctx).Exec(); err != nil {
		return storeErr("delete memberships", err)
	}
	if err := s.session.Query(`DELETE FROM rooms WHERE id = ?`, roomID).WithContext(ctx).Exec(); err != nil {
		return storeErr("delete room", err)
	}
	return nil
}

func (s *Scylla) AddMember(ctx context.Context, roomID, userID string) error {
	ok, err := s.Exists(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}
	// LWT so a re-join keeps the original joined_at instead of upserting
	// over it.
	q := `INSERT INTO room_members (room_id, user_id, joined_at) VALUES (?, ?, ?) IF NOT EXISTS`
	if _, err := s.session.Query(q, roomID, userID, time.Now().UTC()).WithContext(ctx).MapScanCAS(map[string]interface{}{}); err != nil {
		return storeErr("add member", err)
	}
	return nil
}

func (s *Scylla) Members(ctx context.Context, roomID string) ([]string, error) {
	ok, err := s.Exists(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}

	q := `SELECT user_id FROM room_members WHERE room_id = ?`
	iter := s.session.Query(q, roomID).WithContext(ctx).Iter()

	var members []string
	var userID string
	for iter.Scan(&userID) {
		members = append(members, userID)
	}
	if err := iter.Close(); err != nil {
		return nil, storeErr("members", err)
	}
	sort.Strings(members)
	return members, nil
}

func (s *Scylla) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var u string
	q := `SELECT user_id FROM room_members WHERE room_id = ? AND user_id = ?`
	err := s.session.Query(q, roomID, userID).WithContext(ctx).Scan(&u)
	if err == gocql.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, storeErr("is member", err)
	}
	return true, nil
}

var (
	_ MessageLog   = (*Scylla)(nil)
	_ ReactionSet  = (*Scylla)(nil)
	_ RoomRegistry = (*Scylla)(nil)
)
