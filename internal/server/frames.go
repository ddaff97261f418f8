// Package server defines the frame types exchanged over the duplex channel
// and shared helpers reused across client and hub logic.
package server

import "strings"

// Message type tags carried in a frame's type field. ChannelLeft and
// ConnectionStatus are reserved: no handler reacts to them yet.
const (
	TypeConnect          = "CONNECT"
	TypeUserJoined       = "USER_JOINED"
	TypeUserLeft         = "USER_LEFT"
	TypeChatMessage      = "CHAT_MESSAGE"
	TypeChannelJoined    = "CHANNEL_JOINED"
	TypeChannelLeft      = "CHANNEL_LEFT"
	TypeTyping           = "TYPING"
	TypeError            = "ERROR"
	TypeConnectionStatus = "CONNECTION_STATUS"
)

var validTypes = map[string]struct{}{
	TypeConnect:          {},
	TypeUserJoined:       {},
	TypeUserLeft:         {},
	TypeChatMessage:      {},
	TypeChannelJoined:    {},
	TypeChannelLeft:      {},
	TypeTyping:           {},
	TypeError:            {},
	TypeConnectionStatus: {},
}

// isValidType reports whether the tag is one of the declared message types.
func isValidType(t string) bool {
	_, ok := validTypes[t]
	return ok
}

// Frame is one discrete message exchanged over the duplex channel.
type Frame struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Payload carries the frame body. Every field is optional; which ones are set
// depends on the frame type. Inbound chat messages carry their text in
// Content, outbound broadcasts carry human-readable text in Message.
type Payload struct {
	Message   string `json:"message,omitempty"`
	Content   string `json:"content,omitempty"`
	ChannelID int    `json:"channelId,omitempty"`
	UserID    int    `json:"userId,omitempty"`
	Username  string `json:"username,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// errorFrame builds the targeted ERROR reply sent to a single connection.
func errorFrame(message string) Frame {
	return Frame{Type: TypeError, Payload: Payload{Message: message}}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
