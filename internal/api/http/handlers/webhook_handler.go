package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/transport"
	apperrors "github.com/lipetsk-helpdesk/helpdesk-bot/pkg/util/errorutil"
)

// WebhookHandler feeds platform pushes into the same queue long polling uses.
type WebhookHandler struct {
	updates chan<- transport.Update
	logger  *zap.Logger
}

func NewWebhookHandler(updates chan<- transport.Update, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{updates: updates, logger: logger}
}

// Receive accepts one update. Unsupported update kinds are acknowledged and dropped
// so the platform does not redeliver them.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	update, ok, err := transport.DecodeWebhook(c.Body())
	if err != nil {
		return apperrors.NewValidationError("malformed update", map[string]any{"reason": err.Error()})
	}
	if !ok {
		return c.SendStatus(fiber.StatusOK)
	}
	select {
	case h.updates <- update:
		return c.SendStatus(fiber.StatusOK)
	case <-c.UserContext().Done():
		h.logger.Warn("update queue full, asking for redelivery", zap.Int("update_id", update.ID))
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}
}
