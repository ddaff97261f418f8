// Package server exposes the HTTP boundary: the WebSocket upgrade endpoint,
// the REST read/write routes consumed by the rendering layer, and a health
// check.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/huddle-chat/huddle-server/internal/store"
)

// errorResponse is the JSON body for every REST failure.
type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// handleWebSocket upgrades the HTTP connection and hands the client to the
// hub, which launches the pump goroutines. The connection starts
// unidentified until a CONNECT frame claims an identity.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.cfg.MaxMessageSize)
	s.hub.register <- client
}

// handleHealth provides a simple health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Huddle chat server is running!")
}

// handleGetUsers returns every known user in insertion order.
func (s *Server) handleGetUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Users())
}

// handleGetChannels returns every channel in insertion order.
func (s *Server) handleGetChannels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Channels())
}

// handleGetChannelMessages returns the most recent messages of a channel,
// authors joined, oldest first. Unknown channels yield an empty list.
func (s *Server) handleGetChannelMessages(w http.ResponseWriter, r *http.Request) {
	channelID, err := strconv.Atoi(mux.Vars(r)["channelId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid channel ID")
		return
	}

	writeJSON(w, http.StatusOK, s.store.MessagesByChannel(channelID, 0))
}

type createChannelRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	IsDirectMessage bool   `json:"isDirectMessage"`
}

// handleCreateChannel creates a channel and announces the creation to every
// bound connection.
func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Channel name is required")
		return
	}

	channel, err := s.store.CreateChannel(req.Name, req.Description, req.IsDirectMessage)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateChannelName) {
			writeError(w, http.StatusBadRequest, "Channel name already taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create channel")
		return
	}

	writeJSON(w, http.StatusCreated, channel)

	s.hub.Broadcast(Frame{
		Type: TypeChannelJoined,
		Payload: Payload{
			ChannelID: channel.ID,
			Message:   "Channel " + channel.Name + " was created",
		},
	}, 0)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Initials string `json:"initials"`
	Color    string `json:"color"`
}

// handleCreateUser creates a user, filling initials and color defaults when
// the request omits them, and announces the newcomer to every bound
// connection.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}

	if req.Initials == "" {
		req.Initials = deriveInitials(req.Username)
	}
	if req.Color == "" {
		req.Color = randomColor()
	}

	user, err := s.store.CreateUser(req.Username, req.Password, req.Initials, req.Color)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			writeError(w, http.StatusBadRequest, "Username already taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)

	s.hub.Broadcast(Frame{
		Type: TypeUserJoined,
		Payload: Payload{
			UserID:   user.ID,
			Username: user.Username,
			Message:  user.Username + " joined the chat",
		},
	}, 0)
}
