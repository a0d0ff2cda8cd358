package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db    Pinger
	store Pinger
}

// NewHealthHandler creates a new HealthHandler for the ledger and the reservation store.
func NewHealthHandler(db, store Pinger) *HealthHandler {
	return &HealthHandler{db: db, store: store}
}

// Check pings the ledger database and the reservation store.
// Returns 200 OK with {"status": "healthy"} when both are reachable.
// Returns 503 Service Unavailable with {"status": "unhealthy", "error": "..."} otherwise.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.db.Ping(c.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}
	if err := h.store.Ping(c.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed: redis unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "redis connection failed",
		})
	}
	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}
