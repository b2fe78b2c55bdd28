// Package messages is the durable ordered message log.
package messages

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
	"github.com/pingline/pingline/internal/identity"
)

var (
	ErrEmptyBody        = errors.New("message text and attachment are both empty")
	ErrReceiverNotFound = errors.New("receiver identity not found")
	ErrSelfAddressed    = errors.New("sender and receiver are the same identity")
)

// Recipients checks receiver existence before an append.
type Recipients interface {
	Exists(ctx context.Context, ref identity.Ref) (bool, error)
}

// Service persists and reads messages.
type Service struct {
	pool       *pgxpool.Pool
	recipients Recipients
	logger     *slog.Logger
}

// NewService creates a message service.
func NewService(log *slog.Logger, pool *pgxpool.Pool, recipients Recipients) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:       pool,
		recipients: recipients,
		logger:     log.With(slog.String("service", "messages")),
	}
}

// Append validates and persists one message. The insert is a single statement,
// so a persisted message is visible to the very next Thread read.
func (s *Service) Append(ctx context.Context, input AppendInput) (Message, error) {
	text := strings.TrimSpace(input.Text)
	attachment := strings.TrimSpace(input.AttachmentURL)
	if text == "" && attachment == "" {
		return Message{}, ErrEmptyBody
	}
	if !input.Sender.Kind.Valid() || !input.Receiver.Kind.Valid() {
		return Message{}, fmt.Errorf("invalid identity kind on message")
	}
	if input.Sender.ID == input.Receiver.ID {
		return Message{}, ErrSelfAddressed
	}

	ok, err := s.recipients.Exists(ctx, input.Receiver)
	if err != nil {
		return Message{}, fmt.Errorf("check receiver: %w", err)
	}
	if !ok {
		return Message{}, ErrReceiverNotFound
	}

	pgSender, err := dbpkg.ParseUUID(input.Sender.ID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid sender id: %w", err)
	}
	pgReceiver, err := dbpkg.ParseUUID(input.Receiver.ID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid receiver id: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (sender_id, sender_kind, receiver_id, receiver_kind, body, attachment_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, seq, sender_id, sender_kind, receiver_id, receiver_kind, body, attachment_url, created_at`,
		pgSender, string(input.Sender.Kind), pgReceiver, string(input.Receiver.Kind), text, dbpkg.ToPgText(attachment),
	)
	msg, err := scanMessage(row)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// Thread returns every message between the two identities, in both directions,
// ordered by creation time with the insert sequence breaking ties.
func (s *Service) Thread(ctx context.Context, aID, bID string) ([]Message, error) {
	pgA, err := dbpkg.ParseUUID(aID)
	if err != nil {
		return nil, fmt.Errorf("invalid identity id: %w", err)
	}
	pgB, err := dbpkg.ParseUUID(bID)
	if err != nil {
		return nil, fmt.Errorf("invalid identity id: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, seq, sender_id, sender_kind, receiver_id, receiver_kind, body, attachment_url, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at, seq`,
		pgA, pgB,
	)
	if err != nil {
		return nil, fmt.Errorf("read thread: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, msg)
	}
	return items, rows.Err()
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		msg          Message
		pgID         pgtype.UUID
		pgSender     pgtype.UUID
		pgReceiver   pgtype.UUID
		senderKind   string
		receiverKind string
		attachment   pgtype.Text
		createdAt    pgtype.Timestamptz
	)
	if err := row.Scan(&pgID, &msg.Seq, &pgSender, &senderKind, &pgReceiver, &receiverKind, &msg.Text, &attachment, &createdAt); err != nil {
		return Message{}, err
	}
	msg.ID = dbpkg.UUIDToString(pgID)
	msg.SenderID = dbpkg.UUIDToString(pgSender)
	msg.SenderKind = identity.Kind(senderKind)
	msg.ReceiverID = dbpkg.UUIDToString(pgReceiver)
	msg.ReceiverKind = identity.Kind(receiverKind)
	msg.AttachmentURL = dbpkg.TextToString(attachment)
	msg.CreatedAt = dbpkg.TimeFromPg(createdAt)
	return msg, nil
}
