package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/ports"
)

// DebugHandler exposes connection internals for operators
type DebugHandler struct {
	directory ports.SessionDirectory
	log       *zap.Logger
}

func NewDebugHandler(directory ports.SessionDirectory, log *zap.Logger) *DebugHandler {
	return &DebugHandler{
		directory: directory,
		log:       log,
	}
}

// Connections handles GET /api/v1/debug/connections
func (h *DebugHandler) Connections(c *fiber.Ctx) error {
	ids := h.directory.ConnectedIDs()
	return c.JSON(fiber.Map{
		"count":       len(ids),
		"connections": ids,
	})
}

// Sweep handles POST /api/v1/debug/connections/sweep and drops sessions
// whose sockets died without a close handshake.
func (h *DebugHandler) Sweep(c *fiber.Ctx) error {
	stale := h.directory.Sweep()
	return c.JSON(fiber.Map{
		"swept": len(stale),
		"ids":   stale,
	})
}

// Disconnect handles DELETE /api/v1/debug/connections/:id
func (h *DebugHandler) Disconnect(c *fiber.Ctx) error {
	id := c.Params("id")

	if !h.directory.Disconnect(id) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No live session for charger",
		})
	}

	h.log.Info("Operator forced disconnect", zap.String("charge_point_id", id))
	return c.JSON(fiber.Map{
		"status":  "Disconnected",
		"message": "Session closed",
	})
}
