// Command client is a terminal chat client for the gateway. It joins one
// room and relays stdin lines as chat messages. With -secret it self-signs a
// dev token; production clients obtain tokens from the auth service.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/huddlechat/huddle/pkg/auth"
	"github.com/huddlechat/huddle/pkg/model"
)

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "gateway service address")
	roomID := flag.String("room", "", "room id to join")
	userID := flag.String("user", "user1", "user id (with -secret)")
	username := flag.String("name", "", "display name (with -secret)")
	token := flag.String("token", "", "bearer token")
	secret := flag.String("secret", "", "self-sign a dev token with this JWT secret")
	flag.Parse()

	if *roomID == "" {
		log.Fatal("-room is required")
	}

	bearer := *token
	if bearer == "" {
		if *secret == "" {
			log.Fatal("either -token or -secret is required")
		}
		name := *username
		if name == "" {
			name = *userID
		}
		verifier := auth.NewVerifier(*secret, 24*time.Hour)
		signed, err := verifier.Issue(model.Identity{UserID: *userID, Username: name})
		if err != nil {
			log.Fatal("Failed to sign dev token:", err)
		}
		bearer = signed
	}

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	header := http.Header{}
	header.Add("Authorization", "Bearer "+bearer)

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil {
			log.Fatalf("dial failed: %v (status %d)", err, resp.StatusCode)
		}
		log.Fatal("dial failed:", err)
	}
	defer conn.Close()

	send := func(ev model.Event) {
		if err := conn.WriteJSON(ev); err != nil {
			log.Fatal("write failed:", err)
		}
	}
	send(model.Event{Type: model.EventJoin, RoomID: *roomID})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev model.Event
			if err := conn.ReadJSON(&ev); err != nil {
				log.Println("read failed:", err)
				return
			}
			printEvent(ev)
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			switch {
			case strings.HasPrefix(line, "/react "):
				// /react <message-id> <emoji>
				parts := strings.Fields(line)
				if len(parts) != 3 {
					fmt.Println("usage: /react <message-id> <emoji>")
					continue
				}
				id, err := strconv.ParseInt(parts[1], 10, 64)
				if err != nil {
					fmt.Println("bad message id:", parts[1])
					continue
				}
				send(model.Event{Type: model.EventReaction, MessageID: id, Emoji: parts[2]})
			case line == "/leave":
				send(model.Event{Type: model.EventLeave, RoomID: *roomID})
			default:
				send(model.Event{Type: model.EventMessage, RoomID: *roomID, Body: line})
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	select {
	case <-done:
	case <-interrupt:
		log.Println("interrupt, closing")
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func printEvent(ev model.Event) {
	switch ev.Type {
	case model.EventMessage:
		fmt.Printf("[%d] %s: %s\n", ev.ID, ev.Username, ev.Body)
		if ev.FileURL != "" {
			fmt.Printf("      attachment: %s\n", ev.FileURL)
		}
	case model.EventJoined:
		fmt.Printf("* %s joined\n", ev.Username)
	case model.EventLeft:
		fmt.Printf("* %s left\n", ev.Username)
	case model.EventTyping:
		if ev.IsTyping {
			fmt.Printf("* %s is typing...\n", ev.Username)
		}
	case model.EventReactionAdded:
		fmt.Printf("* %s reacted %s to [%d]\n", ev.UserID, ev.Emoji, ev.MessageID)
	case model.EventOnline:
		fmt.Printf("* %s is online\n", ev.UserID)
	case model.EventOffline:
		fmt.Printf("* %s went offline\n", ev.UserID)
	case model.EventError:
		fmt.Printf("! error (%s): %s\n", ev.Code, ev.Detail)
	default:
		data, _ := json.Marshal(ev)
		fmt.Println(string(data))
	}
}
