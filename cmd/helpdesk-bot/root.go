package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/config"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/observability"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/persistence"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/repository"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/repository/memory"
)

var rootCmd = &cobra.Command{
	Use:          "helpdesk-bot",
	Short:        "IT and facilities request intake bot",
	SilenceUsage: true,
	RunE:         runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(bootstrapCmd)
}

func loadConfig(requireToken bool) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if requireToken {
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}

// openStore connects to Postgres when a DSN is configured and falls back to the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Store, *persistence.Postgres, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if pg.Pool == nil {
		logger.Warn("using in-memory request store; data is lost on restart")
		return memory.NewStore(), pg, nil
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, nil, err
		}
	}
	return repository.NewPostgresStore(pg.PoolHandle()), pg, nil
}
