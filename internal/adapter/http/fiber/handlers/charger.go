package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/ports"
	"github.com/seu-repo/ocpp-csms/internal/store"
)

// ChargerHandler serves the charger inventory endpoints
type ChargerHandler struct {
	store     *store.Store
	directory ports.SessionDirectory
	log       *zap.Logger
}

func NewChargerHandler(st *store.Store, directory ports.SessionDirectory, log *zap.Logger) *ChargerHandler {
	return &ChargerHandler{
		store:     st,
		directory: directory,
		log:       log,
	}
}

// List handles GET /api/v1/chargers
func (h *ChargerHandler) List(c *fiber.Ctx) error {
	chargers, err := h.store.ListChargers(c.Context())
	if err != nil {
		h.log.Error("Failed to list chargers", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	out := make([]fiber.Map, 0, len(chargers))
	for _, ch := range chargers {
		connected := h.directory.IsConnected(ch.ID)
		out = append(out, fiber.Map{
			"id":                ch.ID,
			"vendor":            ch.Vendor,
			"model":             ch.Model,
			"status":            ch.Status,
			"last_heartbeat":    ch.LastHeartbeat,
			"meter_value":       ch.MeterValue,
			"websocket_active":  connected,
			"can_send_commands": connected,
		})
	}

	return c.JSON(fiber.Map{
		"count":    len(out),
		"chargers": out,
	})
}

// Get handles GET /api/v1/chargers/:id
func (h *ChargerHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	charger, err := h.store.GetCharger(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if charger == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Charger not found",
		})
	}

	connected := h.directory.IsConnected(id)
	return c.JSON(fiber.Map{
		"charger":           charger,
		"websocket_active":  connected,
		"can_send_commands": connected,
	})
}

// Delete handles DELETE /api/v1/chargers/:id
func (h *ChargerHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.store.DeleteCharger(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	h.directory.Disconnect(id)

	return c.JSON(fiber.Map{
		"status":  "Deleted",
		"message": "Charger removed",
	})
}

// GetLogs handles GET /api/v1/chargers/:id/logs
func (h *ChargerHandler) GetLogs(c *fiber.Ctx) error {
	id := c.Params("id")

	logs, err := h.store.GetLogs(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrChargerNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Charger not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"count": len(logs),
		"logs":  logs,
	})
}

// ClearLogs handles DELETE /api/v1/chargers/:id/logs
func (h *ChargerHandler) ClearLogs(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.store.ClearLogs(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":  "Cleared",
		"message": "Log watermark updated",
	})
}

// GetConnectors handles GET /api/v1/chargers/:id/connectors
func (h *ChargerHandler) GetConnectors(c *fiber.Ctx) error {
	id := c.Params("id")

	charger, err := h.store.GetCharger(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if charger == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Charger not found",
		})
	}

	return c.JSON(fiber.Map{
		"charge_point_id": id,
		"connectors":      charger.Connectors,
	})
}

// ActiveTransactions handles GET /api/v1/transactions/active
func (h *ChargerHandler) ActiveTransactions(c *fiber.Ctx) error {
	chargers, err := h.store.ListChargers(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	active := make([]fiber.Map, 0)
	for _, ch := range chargers {
		if ch.CurrentTransaction == nil {
			continue
		}
		entry := fiber.Map{
			"charge_point_id": ch.ID,
			"transaction_id":  *ch.CurrentTransaction,
			"meter_value":     ch.MeterValue,
		}
		for connID, conn := range ch.Connectors {
			if conn.TransactionID != nil && *conn.TransactionID == *ch.CurrentTransaction {
				entry["connector_id"] = connID
				entry["id_tag"] = conn.IDTag
				entry["started_at"] = conn.StartTimestamp
			}
		}
		active = append(active, entry)
	}

	return c.JSON(fiber.Map{
		"count":        len(active),
		"transactions": active,
	})
}

// --- Vendor settings ---

// VendorSettingsRequest configures post-transaction auto-stop packets
type VendorSettingsRequest struct {
	Vendor            string `json:"vendor"`
	StopEnergyEnabled bool   `json:"stop_energy_enabled"`
	StopEnergyValue   int    `json:"stop_energy_value"`
	StopTimeEnabled   bool   `json:"stop_time_enabled"`
	StopTimeValue     int    `json:"stop_time_value"`
	AutoStopEnabled   bool   `json:"auto_stop_enabled"`
	AutoStopValue     int    `json:"auto_stop_value"`
}

// GetVendorSettings handles GET /api/v1/chargers/:id/vendor-settings
func (h *ChargerHandler) GetVendorSettings(c *fiber.Ctx) error {
	id := c.Params("id")

	charger, err := h.store.GetCharger(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if charger == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Charger not found",
		})
	}

	return c.JSON(charger.VendorSettings)
}

// SetVendorSettings handles PUT /api/v1/chargers/:id/vendor-settings
func (h *ChargerHandler) SetVendorSettings(c *fiber.Ctx) error {
	id := c.Params("id")

	var req VendorSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	switch req.Vendor {
	case "", domain.VendorJioBP, domain.VendorMSIL, domain.VendorCZ:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":         "Unknown vendor",
			"valid_vendors": []string{domain.VendorJioBP, domain.VendorMSIL, domain.VendorCZ},
		})
	}

	err := h.store.ApplyMutation(c.Context(), id, func(ch *domain.Charger) error {
		ch.VendorSettings = domain.VendorSettings{
			Vendor:            req.Vendor,
			StopEnergyEnabled: req.StopEnergyEnabled,
			StopEnergyValue:   req.StopEnergyValue,
			StopTimeEnabled:   req.StopTimeEnabled,
			StopTimeValue:     req.StopTimeValue,
			AutoStopEnabled:   req.AutoStopEnabled,
			AutoStopValue:     req.AutoStopValue,
		}
		return nil
	})
	if err != nil {
		h.log.Error("Failed to save vendor settings",
			zap.String("charge_point_id", id),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":  "Saved",
		"message": "Vendor settings updated",
	})
}
