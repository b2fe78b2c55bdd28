// Package directory resolves human users and chatbots into a single
// addressable contact namespace.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pingline/pingline/internal/chatbots"
	"github.com/pingline/pingline/internal/identity"
	"github.com/pingline/pingline/internal/users"
)

// ErrNotFound is returned when no user or bot matches an identity.
var ErrNotFound = errors.New("directory entry not found")

// UserReader is the human side of the directory.
type UserReader interface {
	Get(ctx context.Context, userID string) (users.User, error)
	Exists(ctx context.Context, userID string) (bool, error)
	ListExcluding(ctx context.Context, selfID string) ([]users.User, error)
}

// BotReader is the chatbot side of the directory.
type BotReader interface {
	Get(ctx context.Context, botID string) (chatbots.Bot, error)
	Exists(ctx context.Context, botID string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]chatbots.Bot, error)
}

// Contact is one addressable chat counterpart, tagged with its kind.
type Contact struct {
	ID          string        `json:"id"`
	Kind        identity.Kind `json:"kind"`
	DisplayName string        `json:"display_name"`
	Username    string        `json:"username,omitempty"`
	AvatarURL   string        `json:"avatar_url,omitempty"`
	ModelID     string        `json:"model_id,omitempty"`
	IsDefault   bool          `json:"is_default,omitempty"`
	Online      bool          `json:"online"`
}

// Service merges the two contact universes.
type Service struct {
	users  UserReader
	bots   BotReader
	logger *slog.Logger
}

// NewService creates a directory service.
func NewService(log *slog.Logger, userReader UserReader, botReader BotReader) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		users:  userReader,
		bots:   botReader,
		logger: log.With(slog.String("service", "directory")),
	}
}

// ListHumans returns every human contact except the requester.
func (s *Service) ListHumans(ctx context.Context, selfID string) ([]Contact, error) {
	items, err := s.users.ListExcluding(ctx, selfID)
	if err != nil {
		return nil, err
	}
	contacts := make([]Contact, 0, len(items))
	for _, u := range items {
		contacts = append(contacts, UserContact(u))
	}
	return contacts, nil
}

// ListBots returns the caller's own bots. Bots are never visible across owners.
func (s *Service) ListBots(ctx context.Context, ownerID string) ([]Contact, error) {
	items, err := s.bots.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	contacts := make([]Contact, 0, len(items))
	for _, b := range items {
		contacts = append(contacts, BotContact(b))
	}
	return contacts, nil
}

// Resolve finds the identity behind an opaque contact ID, trying users first.
func (s *Service) Resolve(ctx context.Context, contactID string) (identity.Ref, error) {
	ok, err := s.users.Exists(ctx, contactID)
	if err != nil {
		return identity.Ref{}, err
	}
	if ok {
		return identity.Ref{ID: contactID, Kind: identity.KindUser}, nil
	}
	ok, err = s.bots.Exists(ctx, contactID)
	if err != nil {
		return identity.Ref{}, err
	}
	if ok {
		return identity.Ref{ID: contactID, Kind: identity.KindBot}, nil
	}
	return identity.Ref{}, ErrNotFound
}

// Exists reports whether the referenced identity exists in its universe.
func (s *Service) Exists(ctx context.Context, ref identity.Ref) (bool, error) {
	switch ref.Kind {
	case identity.KindUser:
		return s.users.Exists(ctx, ref.ID)
	case identity.KindBot:
		return s.bots.Exists(ctx, ref.ID)
	default:
		return false, fmt.Errorf("unknown identity kind: %q", ref.Kind)
	}
}

// UserContact converts a user into a directory contact.
func UserContact(u users.User) Contact {
	return Contact{
		ID:          u.ID,
		Kind:        identity.KindUser,
		DisplayName: u.DisplayName,
		Username:    u.Username,
		AvatarURL:   u.AvatarURL,
	}
}

// BotContact converts a bot into a directory contact. Bots are stateless
// request/response actors, so they always read as online.
func BotContact(b chatbots.Bot) Contact {
	return Contact{
		ID:          b.ID,
		Kind:        identity.KindBot,
		DisplayName: b.DisplayName,
		AvatarURL:   b.AvatarURL,
		ModelID:     b.ModelID,
		IsDefault:   b.IsDefault,
		Online:      true,
	}
}
