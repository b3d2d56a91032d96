package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(false)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Postgres.DSN == "" {
		return errors.New("migrate: POSTGRES_DSN is required")
	}
	pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()
	return persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), logger)
}
