package webhook

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"b24-sync/internal/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WebhookController struct {
	Publisher queue.Publisher
	Types     TypeMap
	Log       *zap.Logger
}

func NewWebhookController(publisher queue.Publisher, types TypeMap, log *zap.Logger) *WebhookController {
	return &WebhookController{
		Publisher: publisher,
		Types:     types,
		Log:       log.Named("webhook"),
	}
}

// Handle accepts a Bitrix webhook, normalizes it and enqueues a ChangeEvent.
// It answers fast; all CRM work happens on the consumer side.
func (ctrl *WebhookController) Handle(c *fiber.Ctx) error {
	requestID := uuid.NewString()

	params := ctrl.collectParams(c)
	event, err := Normalize(params, ctrl.Types)
	if err != nil {
		ctrl.Log.Warn("Rejected webhook",
			zap.String("request_id", requestID),
			zap.String("bitrix_event", event.BitrixEvent),
			zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":     "error",
			"message":    err.Error(),
			"request_id": requestID,
		})
	}

	event.RequestID = requestID
	event.Timestamp = time.Now()

	ctrl.Log.Info("Webhook received",
		zap.String("request_id", requestID),
		zap.String("bitrix_event", event.BitrixEvent),
		zap.String("relation", string(event.RelationKind)),
		zap.String("child_id", event.ChildID),
		zap.String("parent_id", event.ParentID),
		zap.String("contact_id", event.ContactID))

	if err := ctrl.Publisher.Publish(c.UserContext(), event); err != nil {
		ctrl.Log.Error("Failed to enqueue webhook",
			zap.String("request_id", requestID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":     "error",
			"message":    err.Error(),
			"request_id": requestID,
		})
	}

	return c.JSON(fiber.Map{
		"status":     "accepted",
		"request_id": requestID,
	})
}

// collectParams flattens query, form and JSON bodies into one map. Earlier
// sources win so explicit query params override body fields.
func (ctrl *WebhookController) collectParams(c *fiber.Ctx) map[string]string {
	params := make(map[string]string)

	for key, value := range c.Queries() {
		if value != "" {
			params[key] = value
		}
	}

	contentType := string(c.Request().Header.ContentType())
	body := c.Body()

	switch {
	case strings.Contains(contentType, fiber.MIMEApplicationJSON):
		var decoded map[string]interface{}
		if err := json.Unmarshal(body, &decoded); err == nil {
			for key, value := range decoded {
				if _, seen := params[key]; seen {
					continue
				}
				switch v := value.(type) {
				case string:
					params[key] = v
				case float64:
					params[key] = strconv.FormatFloat(v, 'f', -1, 64)
				}
			}
		}
	default:
		// Bitrix sends application/x-www-form-urlencoded with bracket keys.
		if parsed, err := url.ParseQuery(string(body)); err == nil {
			for key, values := range parsed {
				if _, seen := params[key]; seen {
					continue
				}
				if len(values) > 0 {
					params[key] = values[0]
				}
			}
		}
	}

	return params
}
