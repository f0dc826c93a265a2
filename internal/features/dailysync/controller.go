package dailysync

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type DailySyncController struct {
	Service DailySyncService
}

func NewDailySyncController(service DailySyncService) *DailySyncController {
	return &DailySyncController{Service: service}
}

// RunNow triggers the full pass immediately instead of waiting for the
// nightly schedule.
func (ctrl *DailySyncController) RunNow(c *fiber.Ctx) error {
	run, err := ctrl.Service.Run(c.UserContext(), "manual")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
			"run":   run,
		})
	}
	return c.JSON(run)
}

func (ctrl *DailySyncController) ListRuns(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "50"), 10, 64)

	runs, err := ctrl.Service.ListRuns(c.UserContext(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"data": runs,
	})
}
