package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sheetlens/internal/config"
	"sheetlens/internal/database"
	"sheetlens/internal/database/migration"
	"sheetlens/internal/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Connect to PostgreSQL using the DB_* settings and apply every pending
migration step. The API applies the same steps at startup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := logging.NewWithWriter(os.Stderr, cfg.Log.Level, cfg.Log.Location())
			defer func() { _ = logger.Sync() }()

			db, err := database.NewPostgres(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migration.EnsureMigrated(cmd.Context(), db, logger, cfg.Database.Host); err != nil {
				return err
			}
			logger.Info("migrations applied", zap.String("db_host", cfg.Database.Host))
			return nil
		},
	}
}
