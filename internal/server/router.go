// Package server dispatches inbound frames by their declared type to the
// appropriate handler. The routing runs inside the hub's event loop, and no
// failure while processing one frame ever closes the connection it came from
// or disturbs any other client.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/huddle-chat/huddle-server/internal/store"
)

// route validates and dispatches one raw inbound frame.
func (h *Hub) route(client *Client, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("Error processing frame from client %s: %v", client.id, err)
		h.sendError(client, "Failed to process message")
		return
	}

	if !isValidType(frame.Type) {
		log.Printf("Invalid frame type %q from client %s", frame.Type, client.id)
		h.sendError(client, "Invalid message format")
		return
	}

	switch frame.Type {
	case TypeConnect:
		h.handleConnect(client, frame.Payload)
	case TypeChatMessage:
		h.handleChatMessage(frame.Payload)
	case TypeChannelJoined:
		h.handleChannelJoined(frame.Payload)
	case TypeTyping:
		h.handleTyping(frame.Payload)
	default:
		log.Printf("Unhandled frame type %q from client %s", frame.Type, client.id)
	}
}

// handleConnect processes an identity claim. The user is created on first
// sight of the id (with a placeholder credential and derived cosmetic
// defaults) or marked online when it already exists; the connection is then
// bound to the identity and everyone else is told the user came online.
func (h *Hub) handleConnect(client *Client, p Payload) {
	if p.UserID <= 0 || p.Username == "" {
		h.sendError(client, "Invalid connection data. userId and username are required.")
		return
	}

	user, err := h.store.User(p.UserID)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		user, err = h.store.CreateUser(p.Username, "", deriveInitials(p.Username), randomColor())
		if err != nil {
			log.Printf("Error creating user %q for client %s: %v", p.Username, client.id, err)
			h.sendError(client, "Failed to create user")
			return
		}
	case err != nil:
		h.sendError(client, "Failed to create user")
		return
	}

	if user, err = h.store.SetOnlineStatus(user.ID, true); err != nil {
		log.Printf("Error marking user %d online: %v", user.ID, err)
	}

	if displaced := h.registry.bind(user.ID, client, user.Username); displaced != nil {
		// Last bind wins; close the displaced connection instead of leaking it.
		log.Printf("User %d rebound to client %s; closing displaced client %s", user.ID, client.id, displaced.id)
		if displaced.conn != nil {
			_ = displaced.conn.Close()
		}
	}

	h.sendTo(client, Frame{
		Type: TypeConnect,
		Payload: Payload{
			Message: "Connected successfully",
			UserID:  user.ID,
		},
	})

	h.broadcastAll(Frame{
		Type: TypeUserJoined,
		Payload: Payload{
			UserID:   user.ID,
			Username: user.Username,
			Message:  user.Username + " is now online",
		},
	}, user.ID)
}

// handleChatMessage persists an accepted chat frame and fans it out to every
// bound connection, the sender included; the sender's client reconciles via
// the echoed frame. Incomplete or unresolvable frames are dropped silently.
func (h *Hub) handleChatMessage(p Payload) {
	if p.Content == "" || p.UserID <= 0 || p.ChannelID <= 0 {
		return
	}

	user, err := h.store.User(p.UserID)
	if err != nil {
		return
	}
	if _, err := h.store.Channel(p.ChannelID); err != nil {
		return
	}

	message, err := h.store.CreateMessage(p.Content, p.UserID, p.ChannelID)
	if err != nil {
		log.Printf("Error persisting message from user %d: %v", p.UserID, err)
		return
	}

	h.broadcastAll(Frame{
		Type: TypeChatMessage,
		Payload: Payload{
			Message:   p.Content,
			UserID:    user.ID,
			Username:  user.Username,
			ChannelID: p.ChannelID,
			Timestamp: message.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}, 0)
}

// handleChannelJoined announces that a user joined a channel. Purely
// informational, nothing is persisted.
func (h *Hub) handleChannelJoined(p Payload) {
	if p.ChannelID <= 0 || p.UserID <= 0 {
		return
	}

	user, err := h.store.User(p.UserID)
	if err != nil {
		return
	}
	channel, err := h.store.Channel(p.ChannelID)
	if err != nil {
		return
	}

	h.broadcastAll(Frame{
		Type: TypeChannelJoined,
		Payload: Payload{
			ChannelID: channel.ID,
			UserID:    user.ID,
			Username:  user.Username,
			Message:   user.Username + " joined #" + channel.Name,
		},
	}, 0)
}

// handleTyping relays a typing indicator to every bound connection.
func (h *Hub) handleTyping(p Payload) {
	if p.ChannelID <= 0 || p.UserID <= 0 {
		return
	}

	user, err := h.store.User(p.UserID)
	if err != nil {
		return
	}

	h.broadcastAll(Frame{
		Type: TypeTyping,
		Payload: Payload{
			ChannelID: p.ChannelID,
			UserID:    user.ID,
			Username:  user.Username,
		},
	}, 0)
}

// sendError sends a targeted ERROR frame to one connection.
func (h *Hub) sendError(client *Client, message string) {
	h.sendTo(client, errorFrame(message))
}
