// Package store defines the durable storage contracts for messages, reactions
// and rooms, with a ScyllaDB implementation for production and an in-memory
// implementation for tests and single-node development.
package store

import (
	"context"
	"fmt"
	"net/url"

	"github.com/huddlechat/huddle/pkg/model"
)

// MessageLog is the append-only per-room message history. Once appended a
// message is visible to every subsequent History call for the room.
type MessageLog interface {
	// Append persists a message, assigning a unique time-ordered id and a
	// monotonically non-decreasing timestamp. Fails with model.ErrNotFound
	// if the room does not exist and model.ErrValidation if the body is
	// empty and no attachment is given, or if the attachment reference is
	// oversized or not an http(s) URL.
	Append(ctx context.Context, roomID string, sender model.Identity, body, fileURL string) (model.Message, error)

	// History returns up to limit messages in ascending creation order. A
	// non-zero before cursor restricts the page to ids strictly less than
	// it, so pages are restartable walking backwards in time.
	History(ctx context.Context, roomID string, before int64, limit int) ([]model.Message, error)

	// Get looks up one message by id.
	Get(ctx context.Context, messageID int64) (model.Message, error)
}

// ReactionSet holds (message, user, emoji) triples with set semantics.
type ReactionSet interface {
	// Add records the triple. Returns added=false without error when the
	// exact triple already exists.
	Add(ctx context.Context, messageID int64, userID, emoji string) (bool, error)

	// Remove deletes the triple; removing an absent triple is not an error.
	Remove(ctx context.Context, messageID int64, userID, emoji string) (bool, error)

	// ReactionsFor aggregates reactions per emoji for one message.
	ReactionsFor(ctx context.Context, messageID int64) (map[string]model.EmojiReactions, error)
}

// RoomRegistry owns room metadata and the durable membership list.
type RoomRegistry interface {
	// Create makes a room and adds the creator as the first member.
	Create(ctx context.Context, name string, creator model.Identity) (model.Room, error)

	Room(ctx context.Context, roomID string) (model.Room, error)
	List(ctx context.Context) ([]model.Room, error)
	Exists(ctx context.Context, roomID string) (bool, error)

	// Delete removes the room and cascades membership removal.
	Delete(ctx context.Context, roomID string) error

	// AddMember is idempotent.
	AddMember(ctx context.Context, roomID, userID string) error
	Members(ctx context.Context, roomID string) ([]string, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

// maxAttachmentRef caps the attachment reference length. References are URLs
// to externally stored blobs, never the blob itself.
const maxAttachmentRef = 2048

// validateContent enforces the shared message content rules for every
// MessageLog implementation.
func validateContent(body, fileURL string) error {
	if body == "" && fileURL == "" {
		return fmt.Errorf("%w: empty message body with no attachment", model.ErrValidation)
	}
	if fileURL != "" {
		if len(fileURL) > maxAttachmentRef {
			return fmt.Errorf("%w: attachment reference exceeds %d bytes", model.ErrValidation, maxAttachmentRef)
		}
		u, err := url.Parse(fileURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: attachment reference must be an http(s) URL", model.ErrValidation)
		}
	}
	return nil
}
