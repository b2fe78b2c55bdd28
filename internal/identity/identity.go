// Package identity defines the addressable identity namespace shared by
// human users and chatbots.
package identity

import (
	"fmt"
	"strings"
)

// Kind discriminates the two contact universes.
type Kind string

const (
	// KindUser is a human identity; only users participate in presence.
	KindUser Kind = "user"
	// KindBot is a chatbot identity; bots are always reachable and never hold connections.
	KindBot Kind = "bot"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindUser || k == KindBot
}

// ParseKind normalizes a wire value into a Kind.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(KindUser), "human":
		return KindUser, nil
	case string(KindBot), "chatbot":
		return KindBot, nil
	default:
		return "", fmt.Errorf("unknown identity kind: %q", value)
	}
}

// Ref addresses one identity in the combined namespace.
type Ref struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
}

// Same reports whether two refs address the same identity.
func (r Ref) Same(other Ref) bool {
	return r.ID == other.ID && r.Kind == other.Kind
}
