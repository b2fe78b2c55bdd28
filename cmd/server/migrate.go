package main

import (
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/pingline/pingline/db"
	dbpkg "github.com/pingline/pingline/internal/db"
	"github.com/pingline/pingline/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <up|down|version|force> [args]",
	Short: "Apply or roll back database migrations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Init(cfg.Log.Level, cfg.Log.Format)
		migrations, err := fs.Sub(db.MigrationsFS, "migrations")
		if err != nil {
			return err
		}
		return dbpkg.RunMigrate(logger.L, cfg.Postgres, migrations, args[0], args[1:])
	},
}
