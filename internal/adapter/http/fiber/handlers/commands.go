package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	v16 "github.com/seu-repo/ocpp-csms/internal/adapter/ocpp/v16"
	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/ports"
)

// CommandHandler exposes every CSMS-originated OCPP command over REST
type CommandHandler struct {
	commands ports.CommandService
	log      *zap.Logger
}

func NewCommandHandler(commands ports.CommandService, log *zap.Logger) *CommandHandler {
	return &CommandHandler{
		commands: commands,
		log:      log,
	}
}

// commandError maps protocol engine failures onto HTTP statuses.
func (h *CommandHandler) commandError(c *fiber.Ctx, action string, err error) error {
	chargePointID := c.Params("id")

	var callErr *v16.CallError
	switch {
	case errors.Is(err, v16.ErrChargerNotConnected):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Charger is not connected",
		})
	case errors.Is(err, v16.ErrCallTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "Charger did not reply in time",
		})
	case errors.Is(err, v16.ErrConnectionLost):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Connection to charger was lost",
		})
	case errors.As(err, &callErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":       "Charger rejected the command",
			"code":        callErr.Code,
			"description": callErr.Description,
		})
	}

	h.log.Error("Command failed",
		zap.String("charge_point_id", chargePointID),
		zap.String("action", action),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// --- Remote Start/Stop ---

// RemoteStartRequest represents a remote start request
type RemoteStartRequest struct {
	IDTag       string `json:"id_tag"`
	ConnectorID *int   `json:"connector_id,omitempty"`
}

// RemoteStart handles POST /api/v1/chargers/:id/remote-start
func (h *CommandHandler) RemoteStart(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req RemoteStartRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.IDTag == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id_tag is required",
		})
	}

	result, err := h.commands.RemoteStart(c.Context(), chargePointID, req.IDTag, req.ConnectorID)
	if err != nil {
		return h.commandError(c, "RemoteStartTransaction", err)
	}

	return c.JSON(result)
}

// RemoteStopRequest represents a remote stop request
type RemoteStopRequest struct {
	TransactionID int `json:"transaction_id"`
}

// RemoteStop handles POST /api/v1/chargers/:id/remote-stop
func (h *CommandHandler) RemoteStop(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req RemoteStopRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.TransactionID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "transaction_id is required",
		})
	}

	result, err := h.commands.RemoteStop(c.Context(), chargePointID, req.TransactionID)
	if err != nil {
		return h.commandError(c, "RemoteStopTransaction", err)
	}

	return c.JSON(result)
}

// --- Configuration ---

// GetConfigurationRequest selects which keys to fetch; empty means all
type GetConfigurationRequest struct {
	Keys []string `json:"keys,omitempty"`
}

// GetConfiguration handles POST /api/v1/chargers/:id/configuration/get
func (h *CommandHandler) GetConfiguration(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req GetConfigurationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	result, err := h.commands.GetConfiguration(c.Context(), chargePointID, req.Keys)
	if err != nil {
		return h.commandError(c, "GetConfiguration", err)
	}

	return c.JSON(result)
}

// ChangeConfigurationRequest sets one configuration key
type ChangeConfigurationRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ChangeConfiguration handles POST /api/v1/chargers/:id/configuration
func (h *CommandHandler) ChangeConfiguration(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req ChangeConfigurationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "key is required",
		})
	}

	result, err := h.commands.ChangeConfiguration(c.Context(), chargePointID, req.Key, req.Value)
	if err != nil {
		return h.commandError(c, "ChangeConfiguration", err)
	}

	return c.JSON(result)
}

// ClearCache handles POST /api/v1/chargers/:id/clear-cache
func (h *CommandHandler) ClearCache(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	result, err := h.commands.ClearCache(c.Context(), chargePointID)
	if err != nil {
		return h.commandError(c, "ClearCache", err)
	}

	return c.JSON(result)
}

// ResetRequest represents a reset request
type ResetRequest struct {
	Type string `json:"type"` // Hard, Soft
}

// Reset handles POST /api/v1/chargers/:id/reset
func (h *CommandHandler) Reset(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req ResetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Type == "" {
		req.Type = "Soft"
	}
	if req.Type != "Hard" && req.Type != "Soft" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "type must be 'Hard' or 'Soft'",
		})
	}

	result, err := h.commands.Reset(c.Context(), chargePointID, req.Type)
	if err != nil {
		return h.commandError(c, "Reset", err)
	}

	return c.JSON(result)
}

// TriggerMessage handles POST /api/v1/chargers/:id/trigger/:message
func (h *CommandHandler) TriggerMessage(c *fiber.Ctx) error {
	chargePointID := c.Params("id")
	message := c.Params("message")

	validMessages := map[string]bool{
		"BootNotification":              true,
		"Heartbeat":                     true,
		"StatusNotification":            true,
		"MeterValues":                   true,
		"FirmwareStatusNotification":    true,
		"DiagnosticsStatusNotification": true,
	}
	if !validMessages[message] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":          "Invalid message type",
			"valid_messages": []string{"BootNotification", "Heartbeat", "StatusNotification", "MeterValues", "FirmwareStatusNotification", "DiagnosticsStatusNotification"},
		})
	}

	var connectorID *int
	if conn := c.QueryInt("connector_id", 0); conn > 0 {
		connectorID = &conn
	}

	result, err := h.commands.TriggerMessage(c.Context(), chargePointID, message, connectorID)
	if err != nil {
		return h.commandError(c, "TriggerMessage", err)
	}

	return c.JSON(result)
}

// --- Local authorization list ---

// SendLocalListRequest pushes authorization entries to the charger
type SendLocalListRequest struct {
	UpdateType string                `json:"update_type"` // Full, Differential
	Entries    []LocalListEntryInput `json:"entries"`
}

// LocalListEntryInput is one entry of a local list push
type LocalListEntryInput struct {
	IDTag       string     `json:"id_tag"`
	Status      string     `json:"status"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	ParentIDTag string     `json:"parent_id_tag,omitempty"`
}

// SendLocalList handles POST /api/v1/chargers/:id/local-list
func (h *CommandHandler) SendLocalList(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req SendLocalListRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.UpdateType == "" {
		req.UpdateType = "Full"
	}
	if req.UpdateType != "Full" && req.UpdateType != "Differential" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "update_type must be 'Full' or 'Differential'",
		})
	}

	entries := make([]ports.LocalListEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		status := e.Status
		if status == "" {
			status = domain.AuthAccepted
		}
		entries = append(entries, ports.LocalListEntry{
			IDTag:       e.IDTag,
			Status:      status,
			ExpiryDate:  e.ExpiryDate,
			ParentIDTag: e.ParentIDTag,
		})
	}

	result, err := h.commands.SendLocalList(c.Context(), chargePointID, req.UpdateType, entries)
	if err != nil {
		return h.commandError(c, "SendLocalList", err)
	}

	return c.JSON(result)
}

// GetLocalListVersion handles GET /api/v1/chargers/:id/local-list/version
func (h *CommandHandler) GetLocalListVersion(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	version, err := h.commands.GetLocalListVersion(c.Context(), chargePointID)
	if err != nil {
		return h.commandError(c, "GetLocalListVersion", err)
	}

	return c.JSON(fiber.Map{
		"list_version": version,
	})
}

// ClearLocalList handles DELETE /api/v1/chargers/:id/local-list
func (h *CommandHandler) ClearLocalList(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	result, err := h.commands.ClearLocalList(c.Context(), chargePointID)
	if err != nil {
		return h.commandError(c, "SendLocalList", err)
	}

	return c.JSON(result)
}

// --- Data transfer ---

// DataTransferRequest sends a vendor-specific packet to the charger
type DataTransferRequest struct {
	VendorID  string      `json:"vendor_id"`
	MessageID string      `json:"message_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// DataTransfer handles POST /api/v1/chargers/:id/data-transfer
func (h *CommandHandler) DataTransfer(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req DataTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.VendorID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "vendor_id is required",
		})
	}

	result, err := h.commands.DataTransfer(c.Context(), chargePointID, req.VendorID, req.MessageID, req.Data)
	if err != nil {
		return h.commandError(c, "DataTransfer", err)
	}

	return c.JSON(result)
}

// --- Availability ---

// ChangeAvailabilityRequest represents availability change request
type ChangeAvailabilityRequest struct {
	ConnectorID int    `json:"connector_id"`
	Type        string `json:"type"` // Operative, Inoperative
}

// ChangeAvailability handles POST /api/v1/chargers/:id/availability
func (h *CommandHandler) ChangeAvailability(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req ChangeAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Type != "Operative" && req.Type != "Inoperative" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "type must be 'Operative' or 'Inoperative'",
		})
	}

	result, err := h.commands.ChangeAvailability(c.Context(), chargePointID, req.ConnectorID, req.Type)
	if err != nil {
		return h.commandError(c, "ChangeAvailability", err)
	}

	return c.JSON(result)
}

// --- Reservations ---

// ReserveNowRequest represents a reservation request
type ReserveNowRequest struct {
	ReservationID int       `json:"reservation_id"`
	ConnectorID   int       `json:"connector_id"`
	IDTag         string    `json:"id_tag"`
	ParentIDTag   string    `json:"parent_id_tag,omitempty"`
	ExpiryDate    time.Time `json:"expiry_date"`
}

// ReserveNow handles POST /api/v1/chargers/:id/reservations
func (h *CommandHandler) ReserveNow(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req ReserveNowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.IDTag == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id_tag is required",
		})
	}
	if req.ExpiryDate.IsZero() || req.ExpiryDate.Before(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "expiry_date must be in the future",
		})
	}

	result, err := h.commands.ReserveNow(c.Context(), chargePointID, ports.ReserveNowRequest{
		ReservationID: req.ReservationID,
		ConnectorID:   req.ConnectorID,
		IDTag:         req.IDTag,
		ParentIDTag:   req.ParentIDTag,
		ExpiryDate:    req.ExpiryDate,
	})
	if err != nil {
		return h.commandError(c, "ReserveNow", err)
	}

	return c.JSON(result)
}

// CancelReservation handles DELETE /api/v1/chargers/:id/reservations/:reservationId
func (h *CommandHandler) CancelReservation(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	reservationID, err := c.ParamsInt("reservationId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid reservation id",
		})
	}

	result, err := h.commands.CancelReservation(c.Context(), chargePointID, reservationID)
	if err != nil {
		return h.commandError(c, "CancelReservation", err)
	}

	return c.JSON(result)
}

// --- Charging profiles ---

// SetChargingProfileRequest installs a charging profile
type SetChargingProfileRequest struct {
	Profile domain.ChargingProfile `json:"profile"`
}

// SetChargingProfile handles POST /api/v1/chargers/:id/charging-profile
func (h *CommandHandler) SetChargingProfile(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req SetChargingProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Profile.Purpose == "" || req.Profile.Kind == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "charging_profile_purpose and charging_profile_kind are required",
		})
	}

	result, err := h.commands.SetChargingProfile(c.Context(), chargePointID, req.Profile)
	if err != nil {
		return h.commandError(c, "SetChargingProfile", err)
	}

	return c.JSON(result)
}

// ClearChargingProfile handles DELETE /api/v1/chargers/:id/charging-profile
func (h *CommandHandler) ClearChargingProfile(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var filter ports.ClearProfileFilter
	if pid := c.QueryInt("profile_id", 0); pid > 0 {
		filter.ProfileID = &pid
	}
	if conn := c.QueryInt("connector_id", -1); conn >= 0 {
		filter.ConnectorID = &conn
	}
	if purpose := c.Query("purpose"); purpose != "" {
		filter.Purpose = &purpose
	}
	if level := c.QueryInt("stack_level", -1); level >= 0 {
		filter.StackLevel = &level
	}

	result, err := h.commands.ClearChargingProfile(c.Context(), chargePointID, filter)
	if err != nil {
		return h.commandError(c, "ClearChargingProfile", err)
	}

	return c.JSON(result)
}

// GetCompositeSchedule handles GET /api/v1/chargers/:id/composite-schedule
func (h *CommandHandler) GetCompositeSchedule(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	connectorID := c.QueryInt("connector_id", 0)
	duration := c.QueryInt("duration", 0)
	if duration <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "duration is required",
		})
	}
	unit := c.Query("charging_rate_unit")

	result, err := h.commands.GetCompositeSchedule(c.Context(), chargePointID, connectorID, duration, unit)
	if err != nil {
		return h.commandError(c, "GetCompositeSchedule", err)
	}

	return c.JSON(result)
}

// --- Firmware and diagnostics ---

// UpdateFirmwareRequest represents a firmware update request
type UpdateFirmwareRequest struct {
	Location      string     `json:"location"`
	RetrieveDate  *time.Time `json:"retrieve_date,omitempty"`
	Retries       *int       `json:"retries,omitempty"`
	RetryInterval *int       `json:"retry_interval,omitempty"`
}

// UpdateFirmware handles POST /api/v1/chargers/:id/firmware/update
func (h *CommandHandler) UpdateFirmware(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req UpdateFirmwareRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Location == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "location is required",
		})
	}
	retrieveDate := time.Now().UTC()
	if req.RetrieveDate != nil {
		retrieveDate = *req.RetrieveDate
	}

	err := h.commands.UpdateFirmware(c.Context(), chargePointID, req.Location, retrieveDate, req.Retries, req.RetryInterval)
	if err != nil {
		return h.commandError(c, "UpdateFirmware", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":  "Accepted",
		"message": "Firmware update requested",
	})
}

// GetDiagnosticsRequest represents a diagnostics upload request
type GetDiagnosticsRequest struct {
	Location      string     `json:"location"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	StopTime      *time.Time `json:"stop_time,omitempty"`
	Retries       *int       `json:"retries,omitempty"`
	RetryInterval *int       `json:"retry_interval,omitempty"`
}

// GetDiagnostics handles POST /api/v1/chargers/:id/diagnostics
func (h *CommandHandler) GetDiagnostics(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req GetDiagnosticsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Location == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "location is required",
		})
	}

	fileName, err := h.commands.GetDiagnostics(c.Context(), chargePointID, req.Location, req.StartTime, req.StopTime, req.Retries, req.RetryInterval)
	if err != nil {
		return h.commandError(c, "GetDiagnostics", err)
	}

	return c.JSON(fiber.Map{
		"file_name": fileName,
	})
}

// UnlockConnectorRequest represents an unlock request
type UnlockConnectorRequest struct {
	ConnectorID int `json:"connector_id"`
}

// UnlockConnector handles POST /api/v1/chargers/:id/unlock
func (h *CommandHandler) UnlockConnector(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req UnlockConnectorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ConnectorID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "connector_id is required",
		})
	}

	result, err := h.commands.UnlockConnector(c.Context(), chargePointID, req.ConnectorID)
	if err != nil {
		return h.commandError(c, "UnlockConnector", err)
	}

	return c.JSON(result)
}

// --- Raw frames ---

// RawFrameRequest carries a frame sent verbatim, bypassing validation
type RawFrameRequest struct {
	Frame string `json:"frame"`
}

// SendRaw handles POST /api/v1/chargers/:id/raw
func (h *CommandHandler) SendRaw(c *fiber.Ctx) error {
	chargePointID := c.Params("id")

	var req RawFrameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Frame == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "frame is required",
		})
	}

	if err := h.commands.SendRaw(c.Context(), chargePointID, req.Frame); err != nil {
		return h.commandError(c, "Raw", err)
	}

	return c.JSON(fiber.Map{
		"status":  "Sent",
		"message": "Raw frame written to the charger socket",
	})
}
