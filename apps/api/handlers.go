package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/huddlechat/huddle/pkg/auth"
	"github.com/huddlechat/huddle/pkg/model"
	"github.com/huddlechat/huddle/pkg/presence"
	"github.com/huddlechat/huddle/pkg/store"
)

type server struct {
	rooms     store.RoomRegistry
	messages  store.MessageLog
	reactions store.ReactionSet
	mirror    *presence.Mirror
	verifier  *auth.Verifier
}

func (s *server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.authMiddleware)

	r.HandleFunc("/rooms", s.listRooms).Methods(http.MethodGet)
	r.HandleFunc("/rooms", s.createRoom).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id}", s.deleteRoom).Methods(http.MethodDelete)
	r.HandleFunc("/rooms/{id}/join", s.joinRoom).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id}/members", s.listMembers).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}/messages", s.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}/messages", s.postMessage).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id}/online", s.roomOnline).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/reactions", s.listReactions).Methods(http.MethodGet)
	return r
}

// authMiddleware verifies the bearer credential and stores the identity in
// the request context.
func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if token == "" {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}
		id, err := s.verifier.Verify(token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), auth.UserKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(r *http.Request) (model.Identity, bool) {
	id, ok := r.Context().Value(auth.UserKey).(model.Identity)
	return id, ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrNotMember):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, model.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, model.ErrStore):
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		log.Printf("internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if rooms == nil {
		rooms = []model.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *server) createRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	room, err := s.rooms.Create(r.Context(), req.Name, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *server) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID := mux.Vars(r)["id"]

	room, err := s.rooms.Room(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	if room.CreatorID != id.UserID {
		http.Error(w, "only the creator may delete a room", http.StatusForbidden)
		return
	}
	if err := s.rooms.Delete(r.Context(), roomID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) joinRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID := mux.Vars(r)["id"]

	if err := s.rooms.AddMember(r.Context(), roomID, id.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.rooms.Members(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// listMessages returns room history in ascending creation order. A non-zero
// before cursor pages backwards through older messages.
func (s *server) listMessages(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	var before int64
	if v := r.URL.Query().Get("before"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid before cursor", http.StatusBadRequest)
			return
		}
		before = parsed
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 200 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	messages, err := s.messages.History(r.Context(), roomID, before, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *server) postMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID := mux.Vars(r)["id"]

	var req struct {
		Body    string `json:"body"`
		FileURL string `json:"file_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	isMember, err := s.rooms.IsMember(r.Context(), roomID, id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !isMember {
		writeError(w, model.ErrNotMember)
		return
	}

	msg, err := s.messages.Append(r.Context(), roomID, id, req.Body, req.FileURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *server) roomOnline(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	if s.mirror == nil {
		http.Error(w, "presence unavailable", http.StatusServiceUnavailable)
		return
	}
	users, err := s.mirror.RoomOnline(r.Context(), roomID)
	if err != nil {
		log.Printf("failed to fetch online set for room %s: %v", roomID, err)
		http.Error(w, "presence unavailable", http.StatusServiceUnavailable)
		return
	}
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *server) listReactions(w http.ResponseWriter, r *http.Request) {
	messageID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}
	agg, err := s.reactions.ReactionsFor(r.Context(), messageID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}
