// Package presence tracks which identities currently hold at least one live
// connection. Entries are process-local and expire after an inactivity window
// so that a lost disconnect notification cannot leave presence dangling. The
// optional Redis mirror keeps per-room online sets readable by the API
// service.
package presence

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/huddlechat/huddle/pkg/metrics"
)

// Notify is invoked with online=true exactly once when an identity gains its
// first connection, and online=false exactly once when its last connection
// drops or its entry expires.
type Notify func(userID string, online bool)

type entry struct {
	conns    int
	lastSeen time.Time
}

type Tracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*entry
	notify  Notify
	mirror  *Mirror
	stop    chan struct{}
	once    sync.Once
}

// New creates a tracker. mirror may be nil. Call Run to start expiry
// sweeping and Close to stop it.
func New(ttl time.Duration, notify Notify, mirror *Mirror) *Tracker {
	if notify == nil {
		notify = func(string, bool) {}
	}
	return &Tracker{
		ttl:     ttl,
		entries: make(map[string]*entry),
		notify:  notify,
		mirror:  mirror,
		stop:    make(chan struct{}),
	}
}

// Connect records one more live connection for the identity. The online
// notification fires only on the transition from zero connections.
func (t *Tracker) Connect(userID string) {
	t.mu.Lock()
	e, ok := t.entries[userID]
	if !ok {
		e = &entry{}
		t.entries[userID] = e
	}
	e.conns++
	e.lastSeen = time.Now()
	first := e.conns == 1
	t.mu.Unlock()

	if t.mirror != nil {
		t.mirror.SetOnline(context.Background(), userID, t.ttl)
	}
	if first {
		t.notify(userID, true)
	}
}

// Disconnect records one connection gone. The offline notification fires only
// when the last connection drops.
func (t *Tracker) Disconnect(userID string) {
	t.mu.Lock()
	e, ok := t.entries[userID]
	if !ok {
		t.mu.Unlock()
		return
	}
	e.conns--
	last := e.conns <= 0
	if last {
		delete(t.entries, userID)
	}
	t.mu.Unlock()

	if last {
		if t.mirror != nil {
			t.mirror.SetOffline(context.Background(), userID)
		}
		t.notify(userID, false)
	}
}

// Touch refreshes the inactivity window. Called on every inbound event and on
// transport keepalives, so an idle-but-connected client never expires. If the
// sweeper already reclaimed the entry, the caller is proof a live connection
// still exists: the entry is resurrected and online is re-announced.
func (t *Tracker) Touch(userID string) {
	t.mu.Lock()
	e, ok := t.entries[userID]
	if ok {
		e.lastSeen = time.Now()
	} else {
		t.entries[userID] = &entry{conns: 1, lastSeen: time.Now()}
	}
	t.mu.Unlock()

	if t.mirror != nil {
		if ok {
			t.mirror.Refresh(context.Background(), userID, t.ttl)
		} else {
			t.mirror.SetOnline(context.Background(), userID, t.ttl)
		}
	}
	if !ok {
		t.notify(userID, true)
	}
}

func (t *Tracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[userID]
	return ok
}

func (t *Tracker) ListOnline() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.entries))
	for u := range t.entries {
		out = append(out, u)
	}
	return out
}

// Run sweeps expired entries until Close is called. An expired entry is
// removed and broadcast as offline even if its connection count is still
// positive: the transport died without telling us.
func (t *Tracker) Run() {
	interval := t.ttl / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Tracker) sweep() {
	cutoff := time.Now().Add(-t.ttl)

	t.mu.Lock()
	var expired []string
	for u, e := range t.entries {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, u)
			delete(t.entries, u)
		}
	}
	t.mu.Unlock()

	for _, u := range expired {
		metrics.PresenceExpired.Inc()
		log.Printf("presence: entry for %s expired after inactivity window", u)
		if t.mirror != nil {
			t.mirror.SetOffline(context.Background(), u)
		}
		t.notify(u, false)
	}
}

func (t *Tracker) Close() {
	t.once.Do(func() { close(t.stop) })
}
