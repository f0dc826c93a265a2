package token

import (
	"b24-sync/internal/config"
	"b24-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type TokenApi struct {
	controller *TokenController
	config     *config.Config
}

func NewTokenApi(controller *TokenController, config *config.Config) *TokenApi {
	return &TokenApi{
		controller: controller,
		config:     config,
	}
}

func (h *TokenApi) Setup(app *fiber.App) {
	group := app.Group("/api/token", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("/refresh", h.controller.Refresh)
	group.Post("/seed", h.controller.Seed)
	group.Get("/status", h.controller.Status)
}
