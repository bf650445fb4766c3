package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/huddlechat/huddle/pkg/auth"
	"github.com/huddlechat/huddle/pkg/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// readPump pumps frames from the websocket into the session dispatcher. Runs
// until the peer closes or errors; exit releases the whole session.
func readPump(s *session.Session, conn *websocket.Conn) {
	defer func() {
		s.Close()
		conn.Close()
	}()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		// A pong proves the peer is alive even when it sends nothing,
		// keeping the presence entry inside its inactivity window.
		s.Touch()
		return nil
	})

	ctx := context.Background()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			break
		}
		s.Dispatch(ctx, raw)
	}
}

// writePump drains the session's outbound queue to the websocket. One writer
// per connection; the hub closes the queue when the connection is dropped.
func writePump(s *session.Session, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case data, ok := <-s.Conn().Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the queue.
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveWs authenticates the handshake and upgrades to a websocket session.
// An absent or invalid credential rejects the connection before any event is
// processed.
func serveWs(manager *session.Manager, w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token == "" {
		log.Println("Unauthorized: no credential provided")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	s, err := manager.Connect(token)
	if err != nil {
		log.Printf("Unauthorized: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Close()
		log.Println(err)
		return
	}

	go writePump(s, conn)
	go readPump(s, conn)
}
