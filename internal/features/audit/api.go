package audit

import (
	"strconv"

	"b24-sync/internal/config"
	"b24-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuditApi struct {
	service AuditService
	config  *config.Config
}

func NewAuditApi(service AuditService, config *config.Config) *AuditApi {
	return &AuditApi{
		service: service,
		config:  config,
	}
}

func (h *AuditApi) Setup(app *fiber.App) {
	group := app.Group("/api/audit", middleware.AuthMiddleware(h.config.SkipAuth))
	group.Get("/", h.ListLogs)
}

func (h *AuditApi) ListLogs(c *fiber.Ctx) error {
	page, _ := strconv.ParseInt(c.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.Query("limit", "50"), 10, 64)

	filters := map[string]interface{}{}
	if action := c.Query("action"); action != "" {
		filters["action"] = action
	}
	if module := c.Query("module"); module != "" {
		filters["module"] = module
	}

	logs, err := h.service.ListLogs(c.Context(), filters, page, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data": logs,
	})
}
