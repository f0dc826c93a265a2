package sync

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	common_models "b24-sync/internal/common/models"
	"b24-sync/internal/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type SyncController struct {
	Service   SyncService
	Publisher queue.Publisher
}

func NewSyncController(service SyncService, publisher queue.Publisher) *SyncController {
	return &SyncController{Service: service, Publisher: publisher}
}

type runSyncRequest struct {
	ContactID string `json:"contact_id"`
	ParentID  string `json:"parent_id"`
}

// RunSync enqueues a manual full sync for a case or a whole contact. The
// request rides the same queue as webhook traffic so ordering and retry
// behave identically.
func (ctrl *SyncController) RunSync(c *fiber.Ctx) error {
	var req runSyncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ContactID == "" && req.ParentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "contact_id or parent_id is required",
		})
	}

	event := common_models.ChangeEvent{
		RequestID:    uuid.NewString(),
		RelationKind: common_models.RelationAll,
		ContactID:    req.ContactID,
		ParentID:     req.ParentID,
		Operation:    common_models.OperationUpdated,
		BitrixEvent:  "MANUAL",
		Timestamp:    time.Now(),
	}
	if err := ctrl.Publisher.Publish(c.UserContext(), event); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"request_id": event.RequestID,
		"status":     "queued",
	})
}

func (ctrl *SyncController) ListRuns(c *fiber.Ctx) error {
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

// ExportRuns streams recent runs as an Excel workbook.
func (ctrl *SyncController) ExportRuns(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "500"), 10, 64)

	runs, err := ctrl.Service.ListRuns(c.UserContext(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sync Runs"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	columns := []string{"Request ID", "Relation", "Operation", "Status", "Updated Cases", "Error", "Started", "Finished"}
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, run := range runs {
		values := []interface{}{
			run.RequestID,
			string(run.Event.RelationKind),
			string(run.Event.Operation),
			run.Status,
			fmt.Sprintf("%v", run.UpdatedParents),
			run.Error,
			run.StartTime.Format("2006-01-02 15:04:05"),
			run.EndTime.Format("2006-01-02 15:04:05"),
		}
		for colIdx, val := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, val)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	filename := fmt.Sprintf("sync_runs_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}
