package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/domain"
	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/observability"
)

// StatusCounter reports how many requests sit in each lifecycle state.
type StatusCounter interface {
	StatusCounts(ctx context.Context) (map[domain.Status]int, error)
}

// StatsHandler exposes request counts and in-process counters to operators.
type StatsHandler struct {
	counter StatusCounter
	metrics *observability.Metrics
}

func NewStatsHandler(counter StatusCounter, metrics *observability.Metrics) *StatsHandler {
	return &StatsHandler{counter: counter, metrics: metrics}
}

// Get returns {"requests": {...}, "metrics": {...}}.
func (h *StatsHandler) Get(c *fiber.Ctx) error {
	counts, err := h.counter.StatusCounts(c.UserContext())
	if err != nil {
		return err
	}
	byStatus := make(fiber.Map, len(counts))
	for status, n := range counts {
		byStatus[string(status)] = n
	}
	return c.JSON(fiber.Map{
		"requests": byStatus,
		"metrics":  h.metrics.Snapshot(),
	})
}
