package handlers

import (
	"strconv"
	"time"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/automation"
	"github.com/Reg-Kris/pyairtable-automation-service/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handlers struct {
	engine *automation.Engine
	logger *zap.Logger
}

func New(engine *automation.Engine, logger *zap.Logger) *Handlers {
	return &Handlers{
		engine: engine,
		logger: logger,
	}
}

// Ping handles health check requests
func (h *Handlers) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"service":   "automation-service",
		"timestamp": time.Now(),
	})
}

// IngestEvent accepts an event over HTTP and runs it through the engine.
// The response carries the fan-out counts and execution ids.
func (h *Handlers) IngestEvent(c *fiber.Ctx) error {
	event, err := services.DecodeEvent(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid event payload: " + err.Error(),
		})
	}

	result, err := h.engine.ProcessEvent(c.UserContext(), event)
	if err != nil {
		h.logger.Error("Event processing failed",
			zap.Error(err),
			zap.String("event_type", event.Type))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "event processing failed",
		})
	}

	return c.JSON(fiber.Map{
		"event_id":       event.ID,
		"executed_count": result.ExecutedCount,
		"success_count":  result.SuccessCount,
		"execution_ids":  result.ExecutionIDs,
	})
}

// ListExecutions pages through a workflow's execution log
func (h *Handlers) ListExecutions(c *fiber.Ctx) error {
	workflowID := c.Params("id")
	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	executions, total, err := h.engine.ListExecutions(c.UserContext(), workflowID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list executions",
			zap.Error(err),
			zap.String("workflow_id", workflowID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list executions",
		})
	}

	return c.JSON(fiber.Map{
		"executions": executions,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// GetExecution fetches one execution record
func (h *Handlers) GetExecution(c *fiber.Ctx) error {
	executionID := c.Params("executionId")

	execution, err := h.engine.GetExecution(c.UserContext(), executionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load execution",
		})
	}
	if execution == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "execution not found",
		})
	}

	return c.JSON(execution)
}

func parseIntQuery(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
