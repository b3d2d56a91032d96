package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Stats  *handlers.StatsHandler
	// Webhook is nil when the bot long-polls.
	Webhook     *handlers.WebhookHandler
	WebhookPath string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/stats", cfg.Stats.Get)

	if cfg.Webhook != nil {
		path := cfg.WebhookPath
		if path == "" {
			path = "/telegram/webhook"
		}
		app.Post(path, cfg.Webhook.Receive)
	}
}
