// Package event defines the envelope pushed to live socket sessions.
package event

import (
	"encoding/json"
	"fmt"
)

// Type identifies the event category pushed over a live connection.
type Type string

const (
	// TypeHello is sent once after the connection handshake and carries the session ID.
	TypeHello Type = "hello"
	// TypeNewMessage carries one persisted message.
	TypeNewMessage Type = "newMessage"
	// TypeOnlineUsers carries the full set of online user IDs whenever it changes.
	TypeOnlineUsers Type = "onlineUsers"
)

// Event is the wire envelope for socket pushes.
type Event struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// HelloPayload is the data for TypeHello.
type HelloPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// OnlineUsersPayload is the data for TypeOnlineUsers.
type OnlineUsersPayload struct {
	UserIDs []string `json:"user_ids"`
}

// New marshals payload into an event envelope.
func New(t Type, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s event: %w", t, err)
	}
	return Event{Type: t, Data: data}, nil
}
