package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/huddlechat/huddle/pkg/model"
	"github.com/huddlechat/huddle/pkg/snowflake"
)

func newTestStore(t *testing.T) *Memory {
	t.Helper()
	ids, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	return NewMemory(ids)
}

var (
	alice = model.Identity{UserID: "u-alice", Username: "alice"}
	bob   = model.Identity{UserID: "u-bob", Username: "bob"}
)

func TestRoomRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("create adds creator as first member", func(t *testing.T) {
		s := newTestStore(t)
		room, err := s.Create(ctx, "general", alice)
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		if room.ID == "" {
			t.Error("room id should be assigned")
		}
		if room.CreatorID != alice.UserID {
			t.Errorf("CreatorID = %q, want %q", room.CreatorID, alice.UserID)
		}

		members, err := s.Members(ctx, room.ID)
		if err != nil {
			t.Fatalf("Members error: %v", err)
		}
		if len(members) != 1 || members[0] != alice.UserID {
			t.Errorf("Members = %v, want [%s]", members, alice.UserID)
		}
	})

	t.Run("add member is idempotent", func(t *testing.T) {
		s := newTestStore(t)
		room, _ := s.Create(ctx, "general", alice)
		if err := s.AddMember(ctx, room.ID, bob.UserID); err != nil {
			t.Fatalf("AddMember error: %v", err)
		}
		joined := s.members[room.ID][bob.UserID]
		if err := s.AddMember(ctx, room.ID, bob.UserID); err != nil {
			t.Fatalf("second AddMember error: %v", err)
		}
		members, _ := s.Members(ctx, room.ID)
		if len(members) != 2 {
			t.Errorf("Members = %v, want two entries", members)
		}
		if got := s.members[room.ID][bob.UserID]; !got.Equal(joined) {
			t.Errorf("joined_at rewritten on re-join: %v, want %v", got, joined)
		}
	})

	t.Run("unknown room", func(t *testing.T) {
		s := newTestStore(t)
		if _, err := s.Room(ctx, "nope"); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("Room err = %v, want ErrNotFound", err)
		}
		if err := s.AddMember(ctx, "nope", bob.UserID); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("AddMember err = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete cascades membership", func(t *testing.T) {
		s := newTestStore(t)
		room, _ := s.Create(ctx, "general", alice)
		if err := s.Delete(ctx, room.ID); err != nil {
			t.Fatalf("Delete error: %v", err)
		}
		if ok, _ := s.Exists(ctx, room.ID); ok {
			t.Error("room should not exist after delete")
		}
		if _, err := s.Members(ctx, room.ID); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("Members err = %v, want ErrNotFound", err)
		}
	})
}

func TestMessageLogOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room, _ := s.Create(ctx, "general", alice)

	var want []string
	for i := 0; i < 20; i++ {
		body := fmt.Sprintf("msg-%02d", i)
		if _, err := s.Append(ctx, room.ID, alice, body, ""); err != nil {
			t.Fatalf("Append error: %v", err)
		}
		want = append(want, body)
	}

	got, err := s.History(ctx, room.ID, 0, 100)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("History returned %d messages, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.Body != want[i] {
			t.Errorf("message %d body = %q, want %q", i, m.Body, want[i])
		}
		if i > 0 {
			if m.ID <= got[i-1].ID {
				t.Errorf("message %d id %d not greater than previous %d", i, m.ID, got[i-1].ID)
			}
			if m.Timestamp.Before(got[i-1].Timestamp) {
				t.Errorf("message %d timestamp decreased", i)
			}
		}
	}
}

func TestMessageLogPagination(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room, _ := s.Create(ctx, "general", alice)

	var all []model.Message
	for i := 0; i < 10; i++ {
		m, err := s.Append(ctx, room.ID, alice, fmt.Sprintf("msg-%d", i), "")
		if err != nil {
			t.Fatal(err)
		}
		all = append(all, m)
	}

	// Newest page first, then walk backwards with the cursor.
	page, err := s.History(ctx, room.ID, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 4 || page[0].ID != all[6].ID || page[3].ID != all[9].ID {
		t.Fatalf("latest page = %v, want messages 6..9", ids(page))
	}

	page, err = s.History(ctx, room.ID, page[0].ID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 4 || page[0].ID != all[2].ID || page[3].ID != all[5].ID {
		t.Fatalf("second page = %v, want messages 2..5", ids(page))
	}

	page, err = s.History(ctx, room.ID, page[0].ID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != all[0].ID {
		t.Fatalf("final page = %v, want messages 0..1", ids(page))
	}
}

func ids(msgs []model.Message) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestMessageLogValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room, _ := s.Create(ctx, "general", alice)

	t.Run("empty body no attachment", func(t *testing.T) {
		if _, err := s.Append(ctx, room.ID, alice, "", ""); !errors.Is(err, model.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("attachment only is valid", func(t *testing.T) {
		m, err := s.Append(ctx, room.ID, alice, "", "https://files.example/cat.png")
		if err != nil {
			t.Fatalf("Append error: %v", err)
		}
		if m.FileURL == "" {
			t.Error("FileURL should be stored")
		}
	})

	t.Run("oversized attachment reference", func(t *testing.T) {
		ref := "https://files.example/" + strings.Repeat("a", 2048)
		if _, err := s.Append(ctx, room.ID, alice, "", ref); !errors.Is(err, model.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("attachment reference must be http or https", func(t *testing.T) {
		for _, ref := range []string{"not a url", "ftp://files.example/cat.png", "javascript:alert(1)"} {
			if _, err := s.Append(ctx, room.ID, alice, "", ref); !errors.Is(err, model.ErrValidation) {
				t.Errorf("Append(%q) err = %v, want ErrValidation", ref, err)
			}
		}
	})

	t.Run("unknown room", func(t *testing.T) {
		if _, err := s.Append(ctx, "nope", alice, "hi", ""); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		if _, err := s.History(ctx, "nope", 0, 10); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("History err = %v, want ErrNotFound", err)
		}
	})
}

func TestReactionSetIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room, _ := s.Create(ctx, "general", alice)
	msg, _ := s.Append(ctx, room.ID, alice, "hi", "")

	added, err := s.Add(ctx, msg.ID, bob.UserID, "👍")
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if !added {
		t.Error("first Add should report added=true")
	}

	added, err = s.Add(ctx, msg.ID, bob.UserID, "👍")
	if err != nil {
		t.Fatalf("duplicate Add error: %v", err)
	}
	if added {
		t.Error("duplicate Add should report added=false")
	}

	agg, err := s.ReactionsFor(ctx, msg.ID)
	if err != nil {
		t.Fatalf("ReactionsFor error: %v", err)
	}
	got, ok := agg["👍"]
	if !ok {
		t.Fatal("missing 👍 aggregate")
	}
	if got.Count != 1 || len(got.Users) != 1 || got.Users[0] != bob.UserID {
		t.Errorf("aggregate = %+v, want count 1 with only bob", got)
	}
}

func TestReactionSetAggregation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room, _ := s.Create(ctx, "general", alice)
	msg, _ := s.Append(ctx, room.ID, alice, "hi", "")

	s.Add(ctx, msg.ID, alice.UserID, "👍")
	s.Add(ctx, msg.ID, bob.UserID, "👍")
	s.Add(ctx, msg.ID, bob.UserID, "🎉")

	agg, err := s.ReactionsFor(ctx, msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if agg["👍"].Count != 2 {
		t.Errorf("👍 count = %d, want 2", agg["👍"].Count)
	}
	if agg["🎉"].Count != 1 {
		t.Errorf("🎉 count = %d, want 1", agg["🎉"].Count)
	}
}

func TestReactionSetRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room, _ := s.Create(ctx, "general", alice)
	msg, _ := s.Append(ctx, room.ID, alice, "hi", "")

	s.Add(ctx, msg.ID, bob.UserID, "👍")

	removed, err := s.Remove(ctx, msg.ID, bob.UserID, "👍")
	if err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if !removed {
		t.Error("Remove should report removed=true")
	}

	removed, err = s.Remove(ctx, msg.ID, bob.UserID, "👍")
	if err != nil {
		t.Fatalf("Remove of absent triple error: %v", err)
	}
	if removed {
		t.Error("Remove of absent triple should report removed=false")
	}

	agg, _ := s.ReactionsFor(ctx, msg.ID)
	if len(agg) != 0 {
		t.Errorf("aggregate = %v, want empty", agg)
	}
}

func TestReactionUnknownMessage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.Add(ctx, 42, bob.UserID, "👍"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
