package v16

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/ports"
)

var (
	_ ports.CommandService   = (*Server)(nil)
	_ ports.SessionDirectory = (*Server)(nil)
)

// Every operator command resolves the live session first and fails fast
// with ErrChargerNotConnected when there is none. Nothing is queued for
// offline chargers.

func (s *Server) session(chargePointID string) (*Session, error) {
	sess := s.registry.Get(chargePointID)
	if sess == nil || sess.Closed() {
		return nil, ErrChargerNotConnected
	}
	return sess, nil
}

func (s *Server) call(ctx context.Context, chargePointID, action string, payload, conf interface{}) error {
	sess, err := s.session(chargePointID)
	if err != nil {
		return err
	}
	raw, err := sess.Call(ctx, action, payload)
	if err != nil {
		return err
	}
	if conf == nil {
		return nil
	}
	if err := json.Unmarshal(raw, conf); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	return nil
}

func (s *Server) RemoteStart(ctx context.Context, chargePointID, idTag string, connectorID *int) (*ports.CommandResult, error) {
	var conf statusConf
	err := s.call(ctx, chargePointID, "RemoteStartTransaction", remoteStartTransactionReq{
		IDTag:       idTag,
		ConnectorID: connectorID,
	}, &conf)
	if err != nil {
		return nil, err
	}
	return &ports.CommandResult{Status: conf.Status}, nil
}

func (s *Server) RemoteStop(ctx context.Context, chargePointID string, transactionID int) (*ports.CommandResult, error) {
	var conf statusConf
	err := s.call(ctx, chargePointID, "RemoteStopTransaction", remoteStopTransactionReq{
		TransactionID: transactionID,
	}, &conf)
	if err != nil {
		return nil, err
	}
	return &ports.CommandResult{Status: conf.Status}, nil
}

func (s *Server) GetConfiguration(ctx context.Context, chargePointID string, keys []string) (*ports.GetConfigurationResult, error) {
	var conf getConfigurationConf
	err := s.call(ctx, chargePointID, "GetConfiguration", getConfigurationReq{Key: keys}, &conf)
	if err != nil {
		return nil, err
	}
	out := &ports.GetConfigurationResult{UnknownKey: conf.UnknownKey}
	for _, k := range conf.ConfigurationKey {
		out.ConfigurationKey = append(out.ConfigurationKey, ports.ConfigurationKey{
			Key:      k.Key,
			Readonly: k.Readonly,
			Value:    k.Value,
		})
	}
	return out, nil
}

func (s *Server) ChangeConfiguration(ctx context.Context, chargePointID, key, value string) (*ports.CommandResult, error) {
	var conf statusConf
	err := s.call(ctx, chargePointID, "ChangeConfiguration", changeConfigurationReq{Key: key, Value: value}, &conf)
	if err != nil {
		return nil, err
	}
	return &ports.CommandResult{Status: conf.Status}, nil
}

func (s *Server) ClearCache(ctx context.Context, chargePointID string) (*ports.CommandResult, error) {
	var conf statusConf
	err := s.call(ctx, chargePointID, "ClearCache", struct{}{}, &conf)
	if err != nil {
		return nil, err
	}
	return &ports.CommandResult{Status: conf.Status}, nil
}

func (s *Server) Reset(ctx context.Context, chargePointID, resetType string) (*ports.CommandResult, error) {
	var conf statusConf
	err := s.call(ctx, chargePointID, "Reset", resetReq{Type: resetType}, &conf)
	if err != nil {
		return nil, err
	}
	return &ports.CommandResult{Status: conf.Status}, nil
}

func (s *Server) TriggerMessage(ctx context.Context, chargePointID, requestedMessage string, connectorID *int) (*ports.CommandResult, error) {
	var conf statusConf
	err := s.call(ctx, chargePointID, "TriggerMessage", triggerMessageReq{
		RequestedMessage: requestedMessage,
		ConnectorID:      connectorID,
	}, &conf)
	if err != nil {
		return nil, err
	}
	return &ports.CommandResult{Status: conf.Status}, nil
}

// SendLocalList consumes exactly one version-counter increment per
// invocation, whether or not the charger accepts the list.
func (s *Server) SendLocalList(ctx context.Context, chargePointID, updateType string, entries []ports.LocalListEntry) (*ports.SendLocalListResult, error) {
	version := s.store.NextLocalListVersion()

	req := sendLocalListReq{
		ListVersion: version,
		UpdateType:  updateType,
	}
	for _, e := range entries {
		info := &idTagInfo{Status: e.Status, ParentIDTag: e.ParentIDTag}
		if e.ExpiryDate != nil {
			info.ExpiryDate = ocppTime(*e.ExpiryDate)
		}
		req.LocalAuthorizationList = append(req.LocalAuthorizationList, authorizationData{
			IDTag:     e.IDTag,
			IDTagInfo: info,
		})
	}

	var conf statusConf
	if err := s.call(ctx, chargePointID, "SendLocalList", req, &conf); err != nil {
		return nil, err
	}

	// The charger's local list and the central id-tag table must agree, so
	// an accepted push mirrors every entry into the table.
	if conf.Status == "Accepted" {
		for _, e := range entries {
			if _, err := s.store.UpsertIDTag(ctx, e.IDTag, e.Status, e.ExpiryDate, e.ParentIDTag); err != nil {
				s.log.Warn("failed to mirror local list entry",
					zap.String("charge_point_id", chargePointID),
					zap.String("id_tag", e.IDTag),
					zap.Error(err),
				)
			}
		}
	}
	return &ports.SendLocalListResult{Status: conf.Status, ListVersion: version}, nil
}

func (s *Server) GetLocalListVersion(ctx context.Context, chargePointID string) (int, error) {
	var conf getLocalListVersionConf
	if err := s.call(ctx, chargePointID, "GetLocalListVersion", struct{}{}, &conf); err != nil {
		return 0, err
	}
	return conf.ListVersion, nil
}

// ClearLocalList pushes a Full update with list version 0 and an empty
// authorization list. The version counter is not consumed.
func (s *Server) ClearLocalList(ctx context.Context, chargePointID string) (*ports.SendLocalListResult, error) {
	req := sendLocalListReq{ListVersion: 0, UpdateType: "Full"}
	var conf statusConf
	if err := s.call(ctx, chargePointID, "SendLocalList", req, &conf); err != nil {
		return nil, err
	}
	return &ports.SendLocalListResult{Status: conf.Status, ListVersion: 0}, nil
}

func (s *Server) DataTransfer(ctx context.Context, chargePointID, vendorID, messageID string, data interface{}) (*ports.DataTransferResult, error) {
	req := dataTransferReq{VendorID: vendorID, MessageID: messageID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode data transfer payload: %w", err)
		}
		req.Data = raw
	}

	var conf dataTransferConf
	if err := s.call(ctx, chargePointID, "DataTransfer", req, &conf); err != nil {
		return nil, err
	}

	out := &ports.DataTransferResult{Status: conf.Status}
	if len(conf.Data) > 0 {
		var str string
		if err := json.Unmarshal(conf.Data, &str); err == nil {
			out.Data = str
		} else {
			out.Data = string(conf.Data)
		}
	}
	return out, nil
}

func (s *Server) ChangeAvailability(ctx context.Context, chargePointID string, connectorID int, availabilityType string) (*ports.CommandResult, error) {
	var conf statusConf
	err := s.call(ctx, chargePointID, "ChangeAvailability", changeAvailabilityReq{
		ConnectorID: connectorID,
		Type:        availabilityType,
	}, &conf)
	if err != nil {
		return nil, err
	}
	return &ports.CommandResult{Status: conf.Status}, nil
}

// ReserveNow mirrors the reservation into the aggregate only after the
// charger accepted it.
func (s *Server) ReserveNow(ctx context.Context, chargePointID string, req ports.ReserveNowRequest) (*ports.CommandResult, error) {
	var conf statusConf
	err := s.call(ctx, chargePointID, "ReserveNow", reserveNowReq{
		ConnectorID:   req.ConnectorID,
		ExpiryDate:    ocppTime(req.ExpiryDate),
		IDTag:         req.IDTag,
		ParentIDTag:   req.ParentIDTag,
		ReservationID: req.ReservationID,
	}, &conf)
	if err != nil {
		return nil, err
	}

	if conf.Status == "Accepted" {
		now := time.Now().UTC()
		merr := s.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
			c.Reservations[req.ReservationID] = domain.Reservation{
				ReservationID: req.ReservationID,
				ConnectorID:   req.ConnectorID,
				IDTag:         req.IDTag,
				ParentIDTag:   req.ParentIDTag,
				ExpiryDate:    req.ExpiryDate,
				CreatedAt:     now,
			}
			c.Logs = appendBounded(c.Logs, now, fmt.Sprintf("✅ Reservation %d accepted for connector %d (tag %s)", req.ReservationID, req.ConnectorID, req.IDTag))
			return nil
		})
		if merr != nil {
			s.log.Warn("failed to record reservation",
				zap.String("charge_point_id", chargePointID),
				zap.Int("reservation_id", req.ReservationID),
				zap.Error(merr),
			)
		}
	}
	return &ports.CommandResult{Status: conf.Status}, nil
}

func (s *Server) CancelReservation(ctx context.Context, chargePointID string, reservationID int) (*ports.CommandResult, error) {
	var conf statusConf
	err := s.call(ctx, chargePointID, "CancelReservation", cancelReservationReq{ReservationID: reservationID}, &conf)
	if err != nil {
		return nil, err
	}

	if conf.Status == "Accepted" {
		merr := s.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
			delete(c.Reservations, reservationID)
			return nil
		})
		if merr != nil {
			s.log.Warn("failed to drop cancelled reservation",
				zap.String("charge_point_id", chargePointID),
				zap.Int("reservation_id", reservationID),
				zap.Error(merr),
			)
		}
	}
	return &ports.CommandResult{Status: conf.Status}, nil
}

// SetChargingProfile mirrors the accepted profile under its connector so
// the operator API can list what the charger is currently running.
func (s *Server) SetChargingProfile(ctx context.Context, chargePointID string, profile domain.ChargingProfile) (*ports.CommandResult, error) {
	var conf statusConf
	err := s.call(ctx, chargePointID, "SetChargingProfile", setChargingProfileReq{
		ConnectorID:        profile.ConnectorID,
		CsChargingProfiles: toWireProfile(profile),
	}, &conf)
	if err != nil {
		return nil, err
	}

	if conf.Status == "Accepted" {
		merr := s.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
			profile.InstalledAt = time.Now().UTC()
			byID := c.ChargingProfiles[profile.ConnectorID]
			if byID == nil {
				byID = make(map[int]domain.ChargingProfile)
				c.ChargingProfiles[profile.ConnectorID] = byID
			}
			byID[profile.ProfileID] = profile
			return nil
		})
		if merr != nil {
			s.log.Warn("failed to mirror charging profile",
				zap.String("charge_point_id", chargePointID),
				zap.Int("profile_id", profile.ProfileID),
				zap.Error(merr),
			)
		}
	}
	return &ports.CommandResult{Status: conf.Status}, nil
}

// ClearChargingProfile removes mirrored profiles matching the filter once
// the charger accepts. Filter fields apply conjunctively; an empty filter
// clears everything.
func (s *Server) ClearChargingProfile(ctx context.Context, chargePointID string, filter ports.ClearProfileFilter) (*ports.CommandResult, error) {
	var conf statusConf
	err := s.call(ctx, chargePointID, "ClearChargingProfile", clearChargingProfileReq{
		ID:              filter.ProfileID,
		ConnectorID:     filter.ConnectorID,
		ChargingProfile: filter.Purpose,
		StackLevel:      filter.StackLevel,
	}, &conf)
	if err != nil {
		return nil, err
	}

	if conf.Status == "Accepted" {
		merr := s.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
			for connID, byID := range c.ChargingProfiles {
				if filter.ConnectorID != nil && *filter.ConnectorID != connID {
					continue
				}
				for id, p := range byID {
					if filter.ProfileID != nil && *filter.ProfileID != id {
						continue
					}
					if filter.Purpose != nil && *filter.Purpose != p.Purpose {
						continue
					}
					if filter.StackLevel != nil && *filter.StackLevel != p.StackLevel {
						continue
					}
					delete(byID, id)
				}
				if len(byID) == 0 {
					delete(c.ChargingProfiles, connID)
				}
			}
			return nil
		})
		if merr != nil {
			s.log.Warn("failed to clear mirrored profiles",
				zap.String("charge_point_id", chargePointID),
				zap.Error(merr),
			)
		}
	}
	return &ports.CommandResult{Status: conf.Status}, nil
}

func (s *Server) GetCompositeSchedule(ctx context.Context, chargePointID string, connectorID, duration int, chargingRateUnit string) (*ports.CompositeScheduleResult, error) {
	var conf getCompositeScheduleConf
	err := s.call(ctx, chargePointID, "GetCompositeSchedule", getCompositeScheduleReq{
		ConnectorID:      connectorID,
		Duration:         duration,
		ChargingRateUnit: chargingRateUnit,
	}, &conf)
	if err != nil {
		return nil, err
	}

	out := &ports.CompositeScheduleResult{
		Status:      conf.Status,
		ConnectorID: conf.ConnectorID,
	}
	if conf.ScheduleStart != "" {
		if t, perr := time.Parse(time.RFC3339, conf.ScheduleStart); perr == nil {
			out.ScheduleStart = &t
		}
	}
	if conf.ChargingSchedule != nil {
		out.ChargingSchedule = fromWireSchedule(*conf.ChargingSchedule)
	}
	return out, nil
}

func (s *Server) UpdateFirmware(ctx context.Context, chargePointID, location string, retrieveDate time.Time, retries, retryInterval *int) error {
	// UpdateFirmware.conf is an empty object; progress arrives later via
	// FirmwareStatusNotification.
	return s.call(ctx, chargePointID, "UpdateFirmware", updateFirmwareReq{
		Location:      location,
		Retries:       retries,
		RetrieveDate:  ocppTime(retrieveDate),
		RetryInterval: retryInterval,
	}, nil)
}

func (s *Server) GetDiagnostics(ctx context.Context, chargePointID, location string, start, stop *time.Time, retries, retryInterval *int) (string, error) {
	req := getDiagnosticsReq{
		Location:      location,
		Retries:       retries,
		RetryInterval: retryInterval,
	}
	if start != nil {
		req.StartTime = ocppTime(*start)
	}
	if stop != nil {
		req.StopTime = ocppTime(*stop)
	}

	var conf getDiagnosticsConf
	if err := s.call(ctx, chargePointID, "GetDiagnostics", req, &conf); err != nil {
		return "", err
	}
	return conf.FileName, nil
}

func (s *Server) UnlockConnector(ctx context.Context, chargePointID string, connectorID int) (*ports.CommandResult, error) {
	var conf statusConf
	err := s.call(ctx, chargePointID, "UnlockConnector", unlockConnectorReq{ConnectorID: connectorID}, &conf)
	if err != nil {
		return nil, err
	}
	return &ports.CommandResult{Status: conf.Status}, nil
}

// SendRaw bypasses the typed command surface entirely.
func (s *Server) SendRaw(ctx context.Context, chargePointID, frame string) error {
	sess, err := s.session(chargePointID)
	if err != nil {
		return err
	}
	return sess.SendRaw(frame)
}

// appendBounded is the in-mutation variant of the store's log append, for
// mutations that already hold the charger lock.
func appendBounded(logs []domain.LogEntry, now time.Time, message string) []domain.LogEntry {
	logs = append(logs, domain.LogEntry{Timestamp: now, Message: message})
	if over := len(logs) - domain.MaxChargerLogs; over > 0 {
		logs = append([]domain.LogEntry(nil), logs[over:]...)
	}
	return logs
}
