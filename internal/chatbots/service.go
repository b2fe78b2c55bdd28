// Package chatbots manages chatbot contacts: owner-scoped create, list, and delete.
package chatbots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/pingline/pingline/internal/db"
)

var (
	ErrBotNotFound = errors.New("chatbot not found")
	ErrNotOwner    = errors.New("chatbot owned by another user")
)

// Service manages chatbot contacts.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a chatbot service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "chatbots")),
	}
}

// Create inserts a bot for the owner. When the bot is marked default, the
// owner's previous default is cleared in the same transaction, so the most
// recently created default always wins.
func (s *Service) Create(ctx context.Context, ownerID string, req CreateRequest) (Bot, error) {
	pgOwner, err := dbpkg.ParseUUID(ownerID)
	if err != nil {
		return Bot{}, fmt.Errorf("invalid owner id: %w", err)
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return Bot{}, fmt.Errorf("display name is required")
	}
	modelID := strings.TrimSpace(req.ModelID)
	if modelID == "" {
		return Bot{}, fmt.Errorf("model id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Bot{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if req.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE chatbots SET is_default = FALSE, updated_at = now() WHERE owner_id = $1 AND is_default`,
			pgOwner,
		); err != nil {
			return Bot{}, fmt.Errorf("clear previous default: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO chatbots (owner_id, display_name, model_id, avatar_url, is_default)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, owner_id, display_name, model_id, avatar_url, is_default, created_at`,
		pgOwner, displayName, modelID, dbpkg.ToPgText(req.AvatarURL), req.IsDefault,
	)
	bot, err := scanBot(row)
	if err != nil {
		return Bot{}, fmt.Errorf("create chatbot: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Bot{}, fmt.Errorf("commit: %w", err)
	}
	return bot, nil
}

// Get returns a bot by ID.
func (s *Service) Get(ctx context.Context, botID string) (Bot, error) {
	pgID, err := dbpkg.ParseUUID(botID)
	if err != nil {
		return Bot{}, ErrBotNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, display_name, model_id, avatar_url, is_default, created_at
		FROM chatbots WHERE id = $1`,
		pgID,
	)
	bot, err := scanBot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bot{}, ErrBotNotFound
		}
		return Bot{}, fmt.Errorf("get chatbot: %w", err)
	}
	return bot, nil
}

// GetOwned returns a bot only when it belongs to ownerID.
func (s *Service) GetOwned(ctx context.Context, ownerID, botID string) (Bot, error) {
	bot, err := s.Get(ctx, botID)
	if err != nil {
		return Bot{}, err
	}
	if bot.OwnerID != ownerID {
		return Bot{}, ErrNotOwner
	}
	return bot, nil
}

// ListByOwner returns all bots created by the owner, newest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Bot, error) {
	pgOwner, err := dbpkg.ParseUUID(ownerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, display_name, model_id, avatar_url, is_default, created_at
		FROM chatbots WHERE owner_id = $1
		ORDER BY created_at DESC`,
		pgOwner,
	)
	if err != nil {
		return nil, fmt.Errorf("list chatbots: %w", err)
	}
	defer rows.Close()

	items := make([]Bot, 0)
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chatbot: %w", err)
		}
		items = append(items, bot)
	}
	return items, rows.Err()
}

// Delete removes a bot. Only the owner may delete it.
func (s *Service) Delete(ctx context.Context, ownerID, botID string) error {
	if _, err := s.GetOwned(ctx, ownerID, botID); err != nil {
		return err
	}
	pgID, err := dbpkg.ParseUUID(botID)
	if err != nil {
		return ErrBotNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM chatbots WHERE id = $1`, pgID)
	if err != nil {
		return fmt.Errorf("delete chatbot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBotNotFound
	}
	return nil
}

// Exists reports whether a bot with the given ID exists.
func (s *Service) Exists(ctx context.Context, botID string) (bool, error) {
	pgID, err := dbpkg.ParseUUID(botID)
	if err != nil {
		return false, nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chatbots WHERE id = $1)`, pgID).Scan(&exists); err != nil {
		return false, fmt.Errorf("chatbot exists: %w", err)
	}
	return exists, nil
}

func scanBot(row pgx.Row) (Bot, error) {
	var (
		bot       Bot
		pgID      pgtype.UUID
		pgOwner   pgtype.UUID
		avatarURL pgtype.Text
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&pgID, &pgOwner, &bot.DisplayName, &bot.ModelID, &avatarURL, &bot.IsDefault, &createdAt); err != nil {
		return Bot{}, err
	}
	bot.ID = dbpkg.UUIDToString(pgID)
	bot.OwnerID = dbpkg.UUIDToString(pgOwner)
	bot.AvatarURL = dbpkg.TextToString(avatarURL)
	bot.CreatedAt = dbpkg.TimeFromPg(createdAt)
	return bot, nil
}
