package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/service"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Reconcile configured admins and seed the category tree",
	RunE:  runBootstrap,
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(false)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, pg, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	bootstrap := service.NewBootstrap(service.Dependencies{Store: store, Logger: logger})
	if err := bootstrap.ReconcileAdmins(cmd.Context(), cfg.Admins.ITAdminIDs, cfg.Admins.AHOAdminIDs); err != nil {
		return err
	}
	if err := bootstrap.SeedCategories(cmd.Context()); err != nil {
		return err
	}
	logger.Info("bootstrap complete",
		zap.Int("it_admins", len(cfg.Admins.ITAdminIDs)),
		zap.Int("aho_admins", len(cfg.Admins.AHOAdminIDs)))
	return nil
}
