package presence

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mirror reflects presence transitions into Redis so other services can read
// them: a TTL'd presence:<user> key plus a room:<id>:online set per room.
// All writes are best-effort; the in-process tracker stays canonical.
type Mirror struct {
	rdb *redis.Client
}

func NewMirror(addr string) *Mirror {
	return &Mirror{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func (m *Mirror) SetOnline(ctx context.Context, userID string, ttl time.Duration) {
	if err := m.rdb.Set(ctx, "presence:"+userID, time.Now().Unix(), ttl).Err(); err != nil {
		log.Printf("presence mirror: failed to set %s online: %v", userID, err)
	}
}

func (m *Mirror) Refresh(ctx context.Context, userID string, ttl time.Duration) {
	if err := m.rdb.Expire(ctx, "presence:"+userID, ttl).Err(); err != nil {
		log.Printf("presence mirror: failed to refresh %s: %v", userID, err)
	}
}

func (m *Mirror) SetOffline(ctx context.Context, userID string) {
	if err := m.rdb.Del(ctx, "presence:"+userID).Err(); err != nil {
		log.Printf("presence mirror: failed to set %s offline: %v", userID, err)
	}
}

func (m *Mirror) JoinRoom(ctx context.Context, roomID, userID string) {
	if err := m.rdb.SAdd(ctx, "room:"+roomID+":online", userID).Err(); err != nil {
		log.Printf("presence mirror: failed to add %s to room %s: %v", userID, roomID, err)
	}
}

func (m *Mirror) LeaveRoom(ctx context.Context, roomID, userID string) {
	if err := m.rdb.SRem(ctx, "room:"+roomID+":online", userID).Err(); err != nil {
		log.Printf("presence mirror: failed to remove %s from room %s: %v", userID, roomID, err)
	}
}

// RoomOnline reads the mirrored online set for a room.
func (m *Mirror) RoomOnline(ctx context.Context, roomID string) ([]string, error) {
	return m.rdb.SMembers(ctx, "room:"+roomID+":online").Result()
}

func (m *Mirror) Close() error {
	return m.rdb.Close()
}
