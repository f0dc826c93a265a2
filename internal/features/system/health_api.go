package system

import (
	"context"
	"time"

	"b24-sync/internal/config"
	"b24-sync/internal/database"

	"github.com/gofiber/fiber/v2"
)

type HealthApi struct {
	config *config.Config
	db     *database.MongodbDB
}

func NewHealthApi(cfg *config.Config, db *database.MongodbDB) *HealthApi {
	return &HealthApi{config: cfg, db: db}
}

func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.Health)
}

func (h *HealthApi) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if err := h.db.DB.Client().Ping(ctx, nil); err != nil {
		dbStatus = "down"
	}

	status := fiber.StatusOK
	overall := "ok"
	if dbStatus != "ok" {
		status = fiber.StatusServiceUnavailable
		overall = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   overall,
		"service":  h.config.AppId,
		"portal":   h.config.B24Domain,
		"database": dbStatus,
	})
}
