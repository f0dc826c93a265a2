package dailysync

import (
	"b24-sync/internal/config"
	"b24-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DailySyncApi struct {
	controller *DailySyncController
	config     *config.Config
}

func NewDailySyncApi(controller *DailySyncController, config *config.Config) *DailySyncApi {
	return &DailySyncApi{
		controller: controller,
		config:     config,
	}
}

func (h *DailySyncApi) Setup(app *fiber.App) {
	group := app.Group("/api/daily-sync", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("/run", h.controller.RunNow)
	group.Get("/runs", h.controller.ListRuns)
}
