package webhook

import (
	"github.com/gofiber/fiber/v2"
)

type WebhookApi struct {
	controller *WebhookController
}

func NewWebhookApi(controller *WebhookController) *WebhookApi {
	return &WebhookApi{controller: controller}
}

// Setup registers the inbound webhook endpoint. No auth middleware here,
// Bitrix automation rules cannot send an Authorization header.
func (h *WebhookApi) Setup(app *fiber.App) {
	app.Post("/webhook/b24", h.controller.Handle)
	app.Get("/webhook/b24", h.controller.Handle)
}
