package db

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/pingline/pingline/internal/config"
)

// RunMigrate runs a schema migration command against the configured
// database. migrationsFS must expose the .sql pairs at its root.
// Commands: up, down, version, force <N>.
func RunMigrate(logger *slog.Logger, cfg config.PostgresConfig, migrationsFS fs.FS, command string, args []string) error {
	forceTo := -1
	switch command {
	case "up", "down", "version":
	case "force":
		if len(args) == 0 {
			return errors.New("force needs a target version")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("force version %q: %w", args[0], err)
		}
		forceTo = v
	default:
		return fmt.Errorf("unknown migrate command %q (up, down, version, force)", command)
	}

	src, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, DSN(cfg))
	if err != nil {
		return fmt.Errorf("connect for migration: %w", err)
	}
	defer m.Close()
	m.Log = &migrateLog{logger: logger}

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
	case "force":
		if err := m.Force(forceTo); err != nil {
			return fmt.Errorf("migrate force %d: %w", forceTo, err)
		}
	}

	ver, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	logger.Info("schema state",
		slog.String("command", command),
		slog.Uint64("version", uint64(ver)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// migrateLog adapts slog to the migrate.Logger interface.
type migrateLog struct {
	logger *slog.Logger
}

func (l *migrateLog) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *migrateLog) Verbose() bool { return false }
