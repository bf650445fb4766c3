package presence

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) notify(userID string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if online {
		r.events = append(r.events, "online:"+userID)
	} else {
		r.events = append(r.events, "offline:"+userID)
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func TestConnectDisconnect(t *testing.T) {
	rec := &recorder{}
	tr := New(time.Minute, rec.notify, nil)

	tr.Connect("u1")
	if !tr.IsOnline("u1") {
		t.Error("u1 should be online after Connect")
	}

	tr.Disconnect("u1")
	if tr.IsOnline("u1") {
		t.Error("u1 should be offline after Disconnect")
	}

	got := rec.snapshot()
	want := []string{"online:u1", "offline:u1"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestMultipleConnectionsSingleBroadcast(t *testing.T) {
	rec := &recorder{}
	tr := New(time.Minute, rec.notify, nil)

	// Two devices for the same identity: one online event, one offline
	// event, and presence holds until the last connection drops.
	tr.Connect("u1")
	tr.Connect("u1")
	tr.Disconnect("u1")
	if !tr.IsOnline("u1") {
		t.Error("u1 should stay online while one connection remains")
	}
	tr.Disconnect("u1")
	if tr.IsOnline("u1") {
		t.Error("u1 should be offline after last disconnect")
	}

	got := rec.snapshot()
	if len(got) != 2 {
		t.Errorf("events = %v, want exactly one online and one offline", got)
	}
}

func TestDisconnectUnknownIsNoop(t *testing.T) {
	rec := &recorder{}
	tr := New(time.Minute, rec.notify, nil)
	tr.Disconnect("ghost")
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
}

func TestListOnline(t *testing.T) {
	tr := New(time.Minute, nil, nil)
	tr.Connect("u1")
	tr.Connect("u2")
	online := tr.ListOnline()
	if len(online) != 2 {
		t.Errorf("ListOnline = %v, want two identities", online)
	}
}

func TestExpiryBroadcastsExactlyOneOffline(t *testing.T) {
	rec := &recorder{}
	tr := New(50*time.Millisecond, rec.notify, nil)
	go tr.Run()
	defer tr.Close()

	// Simulate an abrupt transport failure: connect, never disconnect.
	tr.Connect("u1")

	deadline := time.Now().Add(2 * time.Second)
	for tr.IsOnline("u1") {
		if time.Now().After(deadline) {
			t.Fatal("u1 never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Let a few more sweeps pass to catch duplicate offline events.
	time.Sleep(100 * time.Millisecond)

	offline := 0
	for _, ev := range rec.snapshot() {
		if ev == "offline:u1" {
			offline++
		}
	}
	if offline != 1 {
		t.Errorf("offline events = %d, want exactly 1", offline)
	}
}

func TestTouchResurrectsExpiredEntry(t *testing.T) {
	rec := &recorder{}
	tr := New(50*time.Millisecond, rec.notify, nil)
	go tr.Run()
	defer tr.Close()

	tr.Connect("u1")
	deadline := time.Now().Add(2 * time.Second)
	for tr.IsOnline("u1") {
		if time.Now().After(deadline) {
			t.Fatal("u1 never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The connection is still live, it just went quiet past the window.
	// Its next keepalive must bring the identity back.
	tr.Touch("u1")
	if !tr.IsOnline("u1") {
		t.Fatal("u1 should be online again after Touch")
	}

	got := rec.snapshot()
	want := []string{"online:u1", "offline:u1", "online:u1"}
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestTouchDefersExpiry(t *testing.T) {
	rec := &recorder{}
	tr := New(80*time.Millisecond, rec.notify, nil)
	go tr.Run()
	defer tr.Close()

	tr.Connect("u1")
	for i := 0; i < 5; i++ {
		time.Sleep(40 * time.Millisecond)
		tr.Touch("u1")
	}
	if !tr.IsOnline("u1") {
		t.Error("u1 should remain online while touched within the window")
	}
}
