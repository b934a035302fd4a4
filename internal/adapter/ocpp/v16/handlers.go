package v16

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/observability/telemetry"
	"github.com/seu-repo/ocpp-csms/internal/store"
)

// heartbeatInterval is the interval handed to chargers in the
// BootNotification reply, in seconds.
const heartbeatInterval = 30

// EventPublisher fans charger lifecycle events out to the message queue
// and, through it, the dashboard.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// Handlers is the inbound handler set: one method per action the charger
// may initiate. Each validates, mutates the store, appends a log entry and
// returns the reply payload plus an optional post-reply hook that the
// session runs only after the CALLRESULT is on the wire.
type Handlers struct {
	store     *store.Store
	events    EventPublisher
	scheduler *Scheduler
	log       *zap.Logger
}

func NewHandlers(st *store.Store, events EventPublisher, scheduler *Scheduler, log *zap.Logger) *Handlers {
	return &Handlers{
		store:     st,
		events:    events,
		scheduler: scheduler,
		log:       log,
	}
}

// Handle routes one inbound CALL. Unknown actions get NotImplemented.
func (h *Handlers) Handle(ctx context.Context, chargePointID, action string, payload json.RawMessage) (interface{}, func(), *protocolError) {
	switch action {
	case "BootNotification":
		return h.bootNotification(ctx, chargePointID, payload)
	case "Heartbeat":
		return h.heartbeat(ctx, chargePointID)
	case "StatusNotification":
		return h.statusNotification(ctx, chargePointID, payload)
	case "Authorize":
		return h.authorize(ctx, chargePointID, payload)
	case "StartTransaction":
		return h.startTransaction(ctx, chargePointID, payload)
	case "StopTransaction":
		return h.stopTransaction(ctx, chargePointID, payload)
	case "MeterValues":
		return h.meterValues(ctx, chargePointID, payload)
	case "DataTransfer":
		return h.dataTransfer(ctx, chargePointID, payload)
	case "FirmwareStatusNotification":
		return h.firmwareStatus(ctx, chargePointID, payload)
	case "DiagnosticsStatusNotification":
		return h.diagnosticsStatus(ctx, chargePointID, payload)
	default:
		h.appendLog(ctx, chargePointID, "❌ Unknown action from charger: "+action)
		return nil, nil, newProtocolError(ErrCodeNotImplemented, "action %s is not supported", action)
	}
}

func (h *Handlers) appendLog(ctx context.Context, chargePointID, message string) {
	if err := h.store.AppendLog(ctx, chargePointID, message); err != nil {
		h.log.Warn("failed to append charger log",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err),
		)
	}
}

func (h *Handlers) publish(subject string, event domain.ChargerEvent) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(subject, event.Encode()); err != nil {
		h.log.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

func (h *Handlers) bootNotification(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, func(), *protocolError) {
	var req bootNotificationReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, nil, newProtocolError(ErrCodeFormationViolation, "invalid BootNotification payload: %v", err)
	}

	// Availability status is owned by StatusNotification; boot only
	// records identity.
	err := h.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
		c.Vendor = req.ChargePointVendor
		c.Model = req.ChargePointModel
		if req.ChargePointSerialNumber != "" {
			c.SerialNumber = req.ChargePointSerialNumber
		}
		if req.FirmwareVersion != "" {
			c.FirmwareVersion = req.FirmwareVersion
		}
		return nil
	})
	if err != nil {
		return nil, nil, newProtocolError(ErrCodeInternalError, "failed to persist boot data")
	}

	h.log.Info("BootNotification",
		zap.String("charge_point_id", chargePointID),
		zap.String("vendor", req.ChargePointVendor),
		zap.String("model", req.ChargePointModel),
	)
	h.appendLog(ctx, chargePointID, fmt.Sprintf("✅ BootNotification: vendor=%s, model=%s, firmware=%s",
		req.ChargePointVendor, req.ChargePointModel, req.FirmwareVersion))

	return bootNotificationConf{
		Status:      "Accepted",
		CurrentTime: ocppTime(time.Now()),
		Interval:    heartbeatInterval,
	}, nil, nil
}

func (h *Handlers) heartbeat(ctx context.Context, chargePointID string) (interface{}, func(), *protocolError) {
	// last_heartbeat was already bumped by the receive loop.
	return heartbeatConf{CurrentTime: ocppTime(time.Now())}, nil, nil
}

func (h *Handlers) statusNotification(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, func(), *protocolError) {
	var req statusNotificationReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, nil, newProtocolError(ErrCodeFormationViolation, "invalid StatusNotification payload: %v", err)
	}

	now := time.Now().UTC()
	err := h.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
		entry := c.Connectors[req.ConnectorID]
		entry.Status = req.Status
		entry.ErrorCode = req.ErrorCode
		entry.UpdatedAt = now
		c.Connectors[req.ConnectorID] = entry
		c.Status = req.Status
		return nil
	})
	if err != nil {
		return nil, nil, newProtocolError(ErrCodeInternalError, "failed to persist status")
	}

	h.appendLog(ctx, chargePointID, fmt.Sprintf("StatusNotification: connector=%d, status=%s, error=%s",
		req.ConnectorID, req.Status, req.ErrorCode))

	after := func() {
		h.publish(domain.SubjectStatusChanged, domain.ChargerEvent{
			Type:          "status_changed",
			ChargePointID: chargePointID,
			ConnectorID:   req.ConnectorID,
			Status:        req.Status,
			Timestamp:     now,
		})
	}
	return struct{}{}, after, nil
}

func (h *Handlers) authorize(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, func(), *protocolError) {
	var req authorizeReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, nil, newProtocolError(ErrCodeFormationViolation, "invalid Authorize payload: %v", err)
	}
	if len(req.IDTag) > domain.MaxIDTagLength {
		return nil, nil, newProtocolError(ErrCodePropertyConstraint, "idTag exceeds %d characters", domain.MaxIDTagLength)
	}

	// Lookup only. Authorize never creates tags.
	tag, err := h.store.GetIDTag(ctx, req.IDTag)
	if err != nil {
		return nil, nil, newProtocolError(ErrCodeInternalError, "id tag lookup failed")
	}

	status := domain.AuthInvalid
	if tag != nil && tag.Authorized(time.Now().UTC()) {
		status = domain.AuthAccepted
	}

	if status == domain.AuthAccepted {
		h.appendLog(ctx, chargePointID, "✅ Authorize: id_tag="+req.IDTag+" accepted")
	} else {
		h.appendLog(ctx, chargePointID, "❌ Authorize: id_tag="+req.IDTag+" rejected")
	}

	return authorizeConf{IDTagInfo: idTagInfo{Status: status}}, nil, nil
}

func (h *Handlers) startTransaction(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, func(), *protocolError) {
	var req startTransactionReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, nil, newProtocolError(ErrCodeFormationViolation, "invalid StartTransaction payload: %v", err)
	}

	now := time.Now().UTC()
	var txID int
	err := h.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
		txID = c.NextTransactionID(now)
		c.Connectors[req.ConnectorID] = domain.ConnectorState{
			Status:         domain.StatusPreparing,
			TransactionID:  &txID,
			IDTag:          req.IDTag,
			StartTimestamp: &now,
			UpdatedAt:      now,
		}
		c.CurrentTransaction = &txID
		c.MeterValue = req.MeterStart
		if req.ReservationID != nil {
			delete(c.Reservations, *req.ReservationID)
		}
		return nil
	})
	if err != nil {
		return nil, nil, newProtocolError(ErrCodeInternalError, "failed to persist transaction")
	}

	h.log.Info("StartTransaction",
		zap.String("charge_point_id", chargePointID),
		zap.Int("connector_id", req.ConnectorID),
		zap.String("id_tag", req.IDTag),
		zap.Int("transaction_id", txID),
	)
	h.appendLog(ctx, chargePointID, fmt.Sprintf("StartTransaction: connector=%d, id_tag=%s, meter_start=%d -> tx %d",
		req.ConnectorID, req.IDTag, req.MeterStart, txID))
	telemetry.ActiveTransactions.Inc()

	// Vendor auto-stop packets and event fan-out only after the reply is
	// on the wire.
	after := func() {
		h.publish(domain.SubjectTransactionStarted, domain.ChargerEvent{
			Type:          "transaction_started",
			ChargePointID: chargePointID,
			ConnectorID:   req.ConnectorID,
			TransactionID: txID,
			Timestamp:     now,
		})
		if h.scheduler != nil {
			h.scheduler.Arm(chargePointID, txID)
		}
	}

	return startTransactionConf{
		TransactionID: txID,
		IDTagInfo:     idTagInfo{Status: domain.AuthAccepted},
	}, after, nil
}

func (h *Handlers) stopTransaction(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, func(), *protocolError) {
	var req stopTransactionReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, nil, newProtocolError(ErrCodeFormationViolation, "invalid StopTransaction payload: %v", err)
	}

	now := time.Now().UTC()
	matched := false
	err := h.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
		if c.CurrentTransaction == nil || *c.CurrentTransaction != req.TransactionID {
			return nil
		}
		matched = true
		c.MeterValue = req.MeterStop
		for connID, entry := range c.Connectors {
			if entry.TransactionID != nil && *entry.TransactionID == req.TransactionID {
				c.Connectors[connID] = domain.ConnectorState{
					Status:    domain.StatusFinishing,
					UpdatedAt: now,
				}
			}
		}
		c.CurrentTransaction = nil
		return nil
	})
	if err != nil {
		return nil, nil, newProtocolError(ErrCodeInternalError, "failed to persist stop")
	}

	if matched {
		h.appendLog(ctx, chargePointID, fmt.Sprintf("StopTransaction: tx=%d, meter_stop=%d, reason=%s",
			req.TransactionID, req.MeterStop, req.Reason))
		telemetry.ActiveTransactions.Dec()
	} else {
		// Unknown tx id clears nothing, but the charger still gets its
		// reply.
		h.appendLog(ctx, chargePointID, fmt.Sprintf("⚠️ StopTransaction for unknown tx=%d ignored", req.TransactionID))
	}

	after := func() {
		h.publish(domain.SubjectTransactionStopped, domain.ChargerEvent{
			Type:          "transaction_stopped",
			ChargePointID: chargePointID,
			TransactionID: req.TransactionID,
			Timestamp:     now,
		})
	}
	return struct{}{}, after, nil
}

func (h *Handlers) meterValues(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, func(), *protocolError) {
	var req meterValuesReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, nil, newProtocolError(ErrCodeFormationViolation, "invalid MeterValues payload: %v", err)
	}

	reading, ok := latestEnergyReading(req)
	if ok {
		err := h.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
			c.MeterValue = reading
			return nil
		})
		if err != nil {
			return nil, nil, newProtocolError(ErrCodeInternalError, "failed to persist meter value")
		}
	}

	h.appendLog(ctx, chargePointID, fmt.Sprintf("MeterValues: connector=%d, samples=%d, latest=%d Wh",
		req.ConnectorID, len(req.MeterValue), reading))

	return struct{}{}, nil, nil
}

// latestEnergyReading picks the last sampled value that parses as a
// number, preferring the energy register measurand when present.
func latestEnergyReading(req meterValuesReq) (int, bool) {
	var value int
	var found bool
	for _, mv := range req.MeterValue {
		for _, sv := range mv.SampledValue {
			if sv.Measurand != "" && sv.Measurand != "Energy.Active.Import.Register" {
				continue
			}
			if f, err := strconv.ParseFloat(sv.Value, 64); err == nil {
				value = int(f)
				found = true
			}
		}
	}
	return value, found
}

func (h *Handlers) dataTransfer(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, func(), *protocolError) {
	var req dataTransferReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, nil, newProtocolError(ErrCodeFormationViolation, "invalid DataTransfer payload: %v", err)
	}

	packet := domain.DataTransferPacket{
		VendorID:   req.VendorID,
		MessageID:  req.MessageID,
		ReceivedAt: time.Now().UTC(),
	}

	trimmed := bytes.TrimSpace(req.Data)
	switch {
	case len(trimmed) == 0:
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			packet.Data = s
		} else {
			packet.Data = string(trimmed)
		}
	default:
		// Object-shaped data violates OCPP 1.6, which requires a string.
		// Accepted anyway, with an audit warning.
		packet.Data = string(trimmed)
		packet.ObjectData = true
	}

	err := h.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
		c.DataTransferPackets = append(c.DataTransferPackets, packet)
		return nil
	})
	if err != nil {
		return nil, nil, newProtocolError(ErrCodeInternalError, "failed to record data transfer")
	}

	if packet.ObjectData {
		h.appendLog(ctx, chargePointID, fmt.Sprintf("⚠️ DataTransfer from vendor=%s has object-shaped data (not a valid OCPP 1.6 string), accepted", req.VendorID))
	} else {
		h.appendLog(ctx, chargePointID, fmt.Sprintf("DataTransfer: vendor=%s, message=%s", req.VendorID, req.MessageID))
	}

	return dataTransferConf{Status: "Accepted"}, nil, nil
}

func (h *Handlers) firmwareStatus(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, func(), *protocolError) {
	var req firmwareStatusNotificationReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, nil, newProtocolError(ErrCodeFormationViolation, "invalid FirmwareStatusNotification payload: %v", err)
	}

	err := h.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
		c.FirmwareStatus = req.Status
		return nil
	})
	if err != nil {
		return nil, nil, newProtocolError(ErrCodeInternalError, "failed to record firmware status")
	}
	h.appendLog(ctx, chargePointID, "FirmwareStatusNotification: "+req.Status)
	return struct{}{}, nil, nil
}

func (h *Handlers) diagnosticsStatus(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, func(), *protocolError) {
	var req diagnosticsStatusNotificationReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, nil, newProtocolError(ErrCodeFormationViolation, "invalid DiagnosticsStatusNotification payload: %v", err)
	}

	err := h.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
		c.DiagnosticsStatus = req.Status
		return nil
	})
	if err != nil {
		return nil, nil, newProtocolError(ErrCodeInternalError, "failed to record diagnostics status")
	}
	h.appendLog(ctx, chargePointID, "DiagnosticsStatusNotification: "+req.Status)
	return struct{}{}, nil, nil
}
