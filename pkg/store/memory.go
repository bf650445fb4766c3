package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huddlechat/huddle/pkg/model"
	"github.com/huddlechat/huddle/pkg/snowflake"
)

// Memory implements MessageLog, ReactionSet and RoomRegistry in process
// memory. It backs tests and single-node development runs.
type Memory struct {
	mu        sync.RWMutex
	ids       *snowflake.Node
	rooms     map[string]model.Room
	members   map[string]map[string]time.Time // room id -> user id -> joined at
	messages  map[string][]model.Message      // room id -> ascending by id
	byID      map[int64]model.Message
	reactions map[int64]map[string]map[string]bool // message id -> emoji -> user ids
}

func NewMemory(ids *snowflake.Node) *Memory {
	return &Memory{
		ids:       ids,
		rooms:     make(map[string]model.Room),
		members:   make(map[string]map[string]time.Time),
		messages:  make(map[string][]model.Message),
		byID:      make(map[int64]model.Message),
		reactions: make(map[int64]map[string]map[string]bool),
	}
}

func (m *Memory) Append(ctx context.Context, roomID string, sender model.Identity, body, fileURL string) (model.Message, error) {
	if err := validateContent(body, fileURL); err != nil {
		return model.Message{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; !ok {
		return model.Message{}, fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}

	id := m.ids.Generate()
	msg := model.Message{
		ID:        id,
		RoomID:    roomID,
		UserID:    sender.UserID,
		Username:  sender.Username,
		Body:      body,
		FileURL:   fileURL,
		Timestamp: snowflake.Timestamp(id),
	}
	m.messages[roomID] = append(m.messages[roomID], msg)
	m.byID[id] = msg
	return msg, nil
}

func (m *Memory) History(ctx context.Context, roomID string, before int64, limit int) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.rooms[roomID]; !ok {
		return nil, fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}
	if limit <= 0 {
		limit = 50
	}

	all := m.messages[roomID]
	end := len(all)
	if before > 0 {
		// Messages are ascending by id, so the page ends at the first id >=
		// the cursor.
		end = sort.Search(len(all), func(i int) bool { return all[i].ID >= before })
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	page := make([]model.Message, end-start)
	copy(page, all[start:end])
	return page, nil
}

func (m *Memory) Get(ctx context.Context, messageID int64) (model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.byID[messageID]
	if !ok {
		return model.Message{}, fmt.Errorf("%w: message %d", model.ErrNotFound, messageID)
	}
	return msg, nil
}

func (m *Memory) Add(ctx context.Context, messageID int64, userID, emoji string) (bool, error) {
	if userID == "" || emoji == "" {
		return false, fmt.Errorf("%w: reaction requires user and emoji", model.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[messageID]; !ok {
		return false, fmt.Errorf("%w: message %d", model.ErrNotFound, messageID)
	}

	byEmoji, ok := m.reactions[messageID]
	if !ok {
		byEmoji = make(map[string]map[string]bool)
		m.reactions[messageID] = byEmoji
	}
	users, ok := byEmoji[emoji]
	if !ok {
		users = make(map[string]bool)
		byEmoji[emoji] = users
	}
	if users[userID] {
		return false, nil
	}
	users[userID] = true
	return true, nil
}

func (m *Memory) Remove(ctx context.Context, messageID int64, userID, emoji string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users, ok := m.reactions[messageID][emoji]
	if !ok || !users[userID] {
		return false, nil
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(m.reactions[messageID], emoji)
	}
	return true, nil
}

func (m *Memory) ReactionsFor(ctx context.Context, messageID int64) (map[string]model.EmojiReactions, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]model.EmojiReactions)
	for emoji, users := range m.reactions[messageID] {
		agg := model.EmojiReactions{Count: len(users), Users: make([]string, 0, len(users))}
		for u := range users {
			agg.Users = append(agg.Users, u)
		}
		sort.Strings(agg.Users)
		out[emoji] = agg
	}
	return out, nil
}

func (m *Memory) Create(ctx context.Context, name string, creator model.Identity) (model.Room, error) {
	if name == "" {
		return model.Room{}, fmt.Errorf("%w: room name required", model.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	room := model.Room{
		ID:        uuid.NewString(),
		Name:      name,
		CreatorID: creator.UserID,
		CreatedAt: time.Now().UTC(),
	}
	m.rooms[room.ID] = room
	m.members[room.ID] = map[string]time.Time{creator.UserID: room.CreatedAt}
	return room, nil
}

func (m *Memory) Room(ctx context.Context, roomID string) (model.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return model.Room{}, fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}
	return room, nil
}

func (m *Memory) List(ctx context.Context) ([]model.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]model.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	return rooms, nil
}

func (m *Memory) Exists(ctx context.Context, roomID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[roomID]
	return ok, nil
}

func (m *Memory) Delete(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; !ok {
		return fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}
	delete(m.rooms, roomID)
	delete(m.members, roomID)
	return nil
}

func (m *Memory) AddMember(ctx context.Context, roomID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.members[roomID]
	if !ok {
		return fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}
	if _, ok := members[userID]; !ok {
		members[userID] = time.Now().UTC()
	}
	return nil
}

func (m *Memory) Members(ctx context.Context, roomID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members, ok := m.members[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}
	out := make([]string, 0, len(members))
	for u := range members {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members, ok := m.members[roomID]
	if !ok {
		return false, fmt.Errorf("%w: room %s", model.ErrNotFound, roomID)
	}
	_, isMember := members[userID]
	return isMember, nil
}

var (
	_ MessageLog   = (*Memory)(nil)
	_ ReactionSet  = (*Memory)(nil)
	_ RoomRegistry = (*Memory)(nil)
)
