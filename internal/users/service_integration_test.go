package users_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pingline/pingline/internal/users"
)

func setupIntegrationTest(t *testing.T) (*users.Service, func()) {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skip integration test: database ping failed: %v", err)
	}

	return users.NewService(nil, pool), func() { pool.Close() }
}

func uniqueUsername(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestIntegrationCreateAndAuthenticate(t *testing.T) {
	svc, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	username := uniqueUsername("alice")

	created, err := svc.Create(ctx, users.CreateRequest{
		Username: username,
		Password: "s3cret-pw",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.Username != username {
		t.Fatalf("unexpected username: %q", created.Username)
	}

	authed, err := svc.Authenticate(ctx, username, "s3cret-pw")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != created.ID {
		t.Fatalf("expected same user, got %s and %s", created.ID, authed.ID)
	}

	if _, err := svc.Authenticate(ctx, username, "wrong"); !errors.Is(err, users.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestIntegrationDuplicateUsername(t *testing.T) {
	svc, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	username := uniqueUsername("dup")

	if _, err := svc.Create(ctx, users.CreateRequest{Username: username, Password: "pw-one"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(ctx, users.CreateRequest{Username: username, Password: "pw-two"})
	if !errors.Is(err, users.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestIntegrationListExcludingSelf(t *testing.T) {
	svc, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	self, err := svc.Create(ctx, users.CreateRequest{Username: uniqueUsername("self"), Password: "pw"})
	if err != nil {
		t.Fatalf("create self: %v", err)
	}
	other, err := svc.Create(ctx, users.CreateRequest{Username: uniqueUsername("other"), Password: "pw"})
	if err != nil {
		t.Fatalf("create other: %v", err)
	}

	listed, err := svc.ListExcluding(ctx, self.ID)
	if err != nil {
		t.Fatalf("list excluding: %v", err)
	}
	var sawSelf, sawOther bool
	for _, u := range listed {
		if u.ID == self.ID {
			sawSelf = true
		}
		if u.ID == other.ID {
			sawOther = true
		}
	}
	if sawSelf {
		t.Fatal("listing must exclude the requesting user")
	}
	if !sawOther {
		t.Fatal("listing should include other users")
	}
}
