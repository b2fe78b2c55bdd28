// Package users manages human user accounts and the human side of the contact directory.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	dbpkg "github.com/pingline/pingline/internal/db"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service manages user accounts.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a user service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "users")),
	}
}

// Create registers a new user with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, req CreateRequest) (User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return User{}, fmt.Errorf("username is required")
	}
	if strings.TrimSpace(req.Password) == "" {
		return User{}, fmt.Errorf("password is required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, display_name, avatar_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, username, email, display_name, avatar_url, created_at`,
		username, dbpkg.ToPgText(req.Email), string(hashed), displayName, dbpkg.ToPgText(req.AvatarURL),
	)
	user, err := scanUser(row)
	if err != nil {
		if dbpkg.IsUniqueViolation(err) {
			return User{}, ErrUsernameTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate validates username/password and returns the user on success.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, username, email, display_name, avatar_url, created_at, password_hash
		FROM users WHERE username = $1`,
		strings.TrimSpace(username),
	)
	var (
		user         User
		email        pgtype.Text
		displayName  pgtype.Text
		avatarURL    pgtype.Text
		createdAt    pgtype.Timestamptz
		passwordHash string
	)
	err := row.Scan(&user.ID, &user.Username, &email, &displayName, &avatarURL, &createdAt, &passwordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	user.Email = dbpkg.TextToString(email)
	user.DisplayName = dbpkg.TextToString(displayName)
	user.AvatarURL = dbpkg.TextToString(avatarURL)
	user.CreatedAt = dbpkg.TimeFromPg(createdAt)
	return user, nil
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	pgID, err := dbpkg.ParseUUID(userID)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, username, email, display_name, avatar_url, created_at
		FROM users WHERE id = $1`,
		pgID,
	)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Exists reports whether a user with the given ID exists.
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	pgID, err := dbpkg.ParseUUID(userID)
	if err != nil {
		return false, nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, pgID).Scan(&exists); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

// ListExcluding returns every user except the given one, for the sidebar contact list.
func (s *Service) ListExcluding(ctx context.Context, selfID string) ([]User, error) {
	pgSelf, err := dbpkg.ParseUUID(selfID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, email, display_name, avatar_url, created_at
		FROM users WHERE id <> $1
		ORDER BY display_name, username`,
		pgSelf,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	return items, rows.Err()
}

// Count returns the number of registered users.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user        User
		pgID        pgtype.UUID
		email       pgtype.Text
		displayName pgtype.Text
		avatarURL   pgtype.Text
		createdAt   pgtype.Timestamptz
	)
	if err := row.Scan(&pgID, &user.Username, &email, &displayName, &avatarURL, &createdAt); err != nil {
		return User{}, err
	}
	user.ID = dbpkg.UUIDToString(pgID)
	user.Email = dbpkg.TextToString(email)
	user.DisplayName = dbpkg.TextToString(displayName)
	user.AvatarURL = dbpkg.TextToString(avatarURL)
	user.CreatedAt = dbpkg.TimeFromPg(createdAt)
	return user, nil
}
