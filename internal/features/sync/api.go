package sync

import (
	"b24-sync/internal/config"
	"b24-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SyncApi struct {
	controller *SyncController
	config     *config.Config
}

func NewSyncApi(controller *SyncController, config *config.Config) *SyncApi {
	return &SyncApi{
		controller: controller,
		config:     config,
	}
}

func (h *SyncApi) Setup(app *fiber.App) {
	group := app.Group("/api/sync", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("/run", h.controller.RunSync)
	group.Get("/runs", h.controller.ListRuns)
	group.Get("/runs/export", h.controller.ExportRuns)
}
