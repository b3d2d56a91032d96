package main

import (
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/lipetsk-helpdesk/helpdesk-bot/internal/api/http"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/api/http/handlers"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/bot"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/events"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/flow"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/observability"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/persistence"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/service"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/session"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/worker"
)

const updateQueueSize = 100

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot and the ops HTTP server",
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(true)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, pg, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	var sessions session.Store = session.NewMemoryStore()
	if redis.Enabled() {
		sessions = session.NewRedisStore(redis.Client, cfg.Redis.SessionTTL())
	}

	tg, err := transport.NewTelegram(cfg.Telegram, logger)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	forwarder := events.NewKafkaForwarder(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	defer forwarder.Close() //nolint:errcheck
	worker.NewEventWorker(dispatcher, forwarder, logger).Start()

	deps := service.Dependencies{
		Store:      store,
		Sessions:   sessions,
		Notifier:   tg,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		BotID:      tg.BotID(),
		DoneWindow: cfg.Listing.DoneWindow(),
	}

	bootstrap := service.NewBootstrap(deps)
	if err := bootstrap.ReconcileAdmins(ctx, cfg.Admins.ITAdminIDs, cfg.Admins.AHOAdminIDs); err != nil {
		return err
	}
	if err := bootstrap.SeedCategories(ctx); err != nil {
		return err
	}

	fanout := service.NewFanoutService(deps)
	clarify := service.NewClarificationService(deps)
	users := service.NewUserService(deps)
	lifecycle := service.NewLifecycleService(deps, fanout, clarify)
	router := bot.NewRouter(bot.Config{
		Lifecycle:    lifecycle,
		Clarify:      clarify,
		Users:        users,
		Runner:       flow.NewRunner(sessions, tg, deps.BotID, logger.Named("flow")),
		Registration: flow.NewRegistration(cfg.Intake, users, tg),
		Intake:       flow.NewIntake(service.NewIntakeService(deps, fanout)),
		Sessions:     sessions,
		Notifier:     tg,
		Metrics:      metrics,
		Logger:       logger.Named("bot"),
		BotID:        deps.BotID,
		PortalURL:    cfg.Intake.PortalURL,
	})

	updates := make(chan transport.Update, updateQueueSize)
	routes := httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readinessDeps(pg, redis)),
		Stats:  handlers.NewStatsHandler(lifecycle, metrics),
	}
	if cfg.Telegram.WebhookURL != "" {
		hook, err := url.Parse(cfg.Telegram.WebhookURL)
		if err != nil {
			return err
		}
		if err := tg.SetWebhook(cfg.Telegram.WebhookURL); err != nil {
			return err
		}
		routes.Webhook = handlers.NewWebhookHandler(updates, logger)
		routes.WebhookPath = hook.Path
		logger.Info("receiving updates by webhook", zap.String("path", hook.Path))
	} else {
		go tg.Poll(ctx, updates)
		logger.Info("receiving updates by long polling")
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, 10*time.Second)
	httptransport.RegisterRoutes(app, routes)

	go router.Run(ctx, updates)
	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	return app.ShutdownWithTimeout(5 * time.Second)
}

// readinessDeps leaves unconfigured backends nil so the probe reports them disabled.
func readinessDeps(pg *persistence.Postgres, redis *persistence.Redis) map[string]handlers.Pinger {
	deps := map[string]handlers.Pinger{"postgres": nil, "redis": nil}
	if pg.Pool != nil {
		deps["postgres"] = pg
	}
	if redis.Enabled() {
		deps["redis"] = redis
	}
	return deps
}
