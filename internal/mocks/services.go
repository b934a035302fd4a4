package mocks

import (
	"context"
	"time"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/ports"
)

// MockCommandService is a mock implementation of CommandService interface
type MockCommandService struct {
	RemoteStartFunc          func(ctx context.Context, chargePointID, idTag string, connectorID *int) (*ports.CommandResult, error)
	RemoteStopFunc           func(ctx context.Context, chargePointID string, transactionID int) (*ports.CommandResult, error)
	GetConfigurationFunc     func(ctx context.Context, chargePointID string, keys []string) (*ports.GetConfigurationResult, error)
	ChangeConfigurationFunc  func(ctx context.Context, chargePointID, key, value string) (*ports.CommandResult, error)
	ClearCacheFunc           func(ctx context.Context, chargePointID string) (*ports.CommandResult, error)
	ResetFunc                func(ctx context.Context, chargePointID, resetType string) (*ports.CommandResult, error)
	TriggerMessageFunc       func(ctx context.Context, chargePointID, requestedMessage string, connectorID *int) (*ports.CommandResult, error)
	SendLocalListFunc        func(ctx context.Context, chargePointID, updateType string, entries []ports.LocalListEntry) (*ports.SendLocalListResult, error)
	GetLocalListVersionFunc  func(ctx context.Context, chargePointID string) (int, error)
	ClearLocalListFunc       func(ctx context.Context, chargePointID string) (*ports.SendLocalListResult, error)
	DataTransferFunc         func(ctx context.Context, chargePointID, vendorID, messageID string, data interface{}) (*ports.DataTransferResult, error)
	ChangeAvailabilityFunc   func(ctx context.Context, chargePointID string, connectorID int, availabilityType string) (*ports.CommandResult, error)
	ReserveNowFunc           func(ctx context.Context, chargePointID string, req ports.ReserveNowRequest) (*ports.CommandResult, error)
	CancelReservationFunc    func(ctx context.Context, chargePointID string, reservationID int) (*ports.CommandResult, error)
	SetChargingProfileFunc   func(ctx context.Context, chargePointID string, profile domain.ChargingProfile) (*ports.CommandResult, error)
	ClearChargingProfileFunc func(ctx context.Context, chargePointID string, filter ports.ClearProfileFilter) (*ports.CommandResult, error)
	GetCompositeScheduleFunc func(ctx context.Context, chargePointID string, connectorID, duration int, chargingRateUnit string) (*ports.CompositeScheduleResult, error)
	UpdateFirmwareFunc       func(ctx context.Context, chargePointID, location string, retrieveDate time.Time, retries, retryInterval *int) error
	GetDiagnosticsFunc       func(ctx context.Context, chargePointID, location string, start, stop *time.Time, retries, retryInterval *int) (string, error)
	UnlockConnectorFunc      func(ctx context.Context, chargePointID string, connectorID int) (*ports.CommandResult, error)
	SendRawFunc              func(ctx context.Context, chargePointID, frame string) error
}

func (m *MockCommandService) RemoteStart(ctx context.Context, chargePointID, idTag string, connectorID *int) (*ports.CommandResult, error) {
	if m.RemoteStartFunc != nil {
		return m.RemoteStartFunc(ctx, chargePointID, idTag, connectorID)
	}
	return &ports.CommandResult{Status: "Accepted"}, nil
}

func (m *MockCommandService) RemoteStop(ctx context.Context, chargePointID string, transactionID int) (*ports.CommandResult, error) {
	if m.RemoteStopFunc != nil {
		return m.RemoteStopFunc(ctx, chargePointID, transactionID)
	}
	return &ports.CommandResult{Status: "Accepted"}, nil
}

func (m *MockCommandService) GetConfiguration(ctx context.Context, chargePointID string, keys []string) (*ports.GetConfigurationResult, error) {
	if m.GetConfigurationFunc != nil {
		return m.GetConfigurationFunc(ctx, chargePointID, keys)
	}
	return &ports.GetConfigurationResult{}, nil
}

func (m *MockCommandService) ChangeConfiguration(ctx context.Context, chargePointID, key, value string) (*ports.CommandResult, error) {
	if m.ChangeConfigurationFunc != nil {
		return m.ChangeConfigurationFunc(ctx, chargePointID, key, value)
	}
	return &ports.CommandResult{Status: "Accepted"}, nil
}

func (m *MockCommandService) ClearCache(ctx context.Context, chargePointID string) (*ports.CommandResult, error) {
	if m.ClearCacheFunc != nil {
		return m.ClearCacheFunc(ctx, chargePointID)
	}
	return &ports.CommandResult{Status: "Accepted"}, nil
}

func (m *MockCommandService) Reset(ctx context.Context, chargePointID, resetType string) (*ports.CommandResult, error) {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, chargePointID, resetType)
	}
	return &ports.CommandResult{Status: "Accepted"}, nil
}

func (m *MockCommandService) TriggerMessage(ctx context.Context, chargePointID, requestedMessage string, connectorID *int) (*ports.CommandResult, error) {
	if m.TriggerMessageFunc != nil {
		return m.TriggerMessageFunc(ctx, chargePointID, requestedMessage, connectorID)
	}
	return &ports.CommandResult{Status: "Accepted"}, nil
}

func (m *MockCommandService) SendLocalList(ctx context.Context, chargePointID, updateType string, entries []ports.LocalListEntry) (*ports.SendLocalListResult, error) {
	if m.SendLocalListFunc != nil {
		return m.SendLocalListFunc(ctx, chargePointID, updateType, entries)
	}
	return &ports.SendLocalListResult{Status: "Accepted", ListVersion: 1}, nil
}

func (m *MockCommandService) GetLocalListVersion(ctx context.Context, chargePointID string) (int, error) {
	if m.GetLocalListVersionFunc != nil {
		return m.GetLocalListVersionFunc(ctx, chargePointID)
	}
	return 0, nil
}

func (m *MockCommandService) ClearLocalList(ctx context.Context, chargePointID string) (*ports.SendLocalListResult, error) {
	if m.ClearLocalListFunc != nil {
		return m.ClearLocalListFunc(ctx, chargePointID)
	}
	return &ports.SendLocalListResult{Status: "Accepted", ListVersion: 0}, nil
}

func (m *MockCommandService) DataTransfer(ctx context.Context, chargePointID, vendorID, messageID string, data interface{}) (*ports.DataTransferResult, error) {
	if m.DataTransferFunc != nil {
		return m.DataTransferFunc(ctx, chargePointID, vendorID, messageID, data)
	}
	return &ports.DataTransferResult{Status: "Accepted"}, nil
}

func (m *MockCommandService) ChangeAvailability(ctx context.Context, chargePointID string, connectorID int, availabilityType string) (*ports.CommandResult, error) {
	if m.ChangeAvailabilityFunc != nil {
		return m.ChangeAvailabilityFunc(ctx, chargePointID, connectorID, availabilityType)
	}
	return &ports.CommandResult{Status: "Accepted"}, nil
}

func (m *MockCommandService) ReserveNow(ctx context.Context, chargePointID string, req ports.ReserveNowRequest) (*ports.CommandResult, error) {
	if m.ReserveNowFunc != nil {
		return m.ReserveNowFunc(ctx, chargePointID, req)
	}
	return &ports.CommandResult{Status: "Accepted"}, nil
}

func (m *MockCommandService) CancelReservation(ctx context.Context, chargePointID string, reservationID int) (*ports.CommandResult, error) {
	if m.CancelReservationFunc != nil {
		return m.CancelReservationFunc(ctx, chargePointID, reservationID)
	}
	return &ports.CommandResult{Status: "Accepted"}, nil
}

func (m *MockCommandService) SetChargingProfile(ctx context.Context, chargePointID string, profile domain.ChargingProfile) (*ports.CommandResult, error) {
	if m.SetChargingProfileFunc != nil {
		return m.SetChargingProfileFunc(ctx, chargePointID, profile)
	}
	return &ports.CommandResult{Status: "Accepted"}, nil
}

func (m *MockCommandService) ClearChargingProfile(ctx context.Context, chargePointID string, filter ports.ClearProfileFilter) (*ports.CommandResult, error) {
	if m.ClearChargingProfileFunc != nil {
		return m.ClearChargingProfileFunc(ctx, chargePointID, filter)
	}
	return &ports.CommandResult{Status: "Accepted"}, nil
}

func (m *MockCommandService) GetCompositeSchedule(ctx context.Context, chargePointID string, connectorID, duration int, chargingRateUnit string) (*ports.CompositeScheduleResult, error) {
	if m.GetCompositeScheduleFunc != nil {
		return m.GetCompositeScheduleFunc(ctx, chargePointID, connectorID, duration, chargingRateUnit)
	}
	return &ports.CompositeScheduleResult{Status: "Rejected"}, nil
}

func (m *MockCommandService) UpdateFirmware(ctx context.Context, chargePointID, location string, retrieveDate time.Time, retries, retryInterval *int) error {
	if m.UpdateFirmwareFunc != nil {
		return m.UpdateFirmwareFunc(ctx, chargePointID, location, retrieveDate, retries, retryInterval)
	}
	return nil
}

func (m *MockCommandService) GetDiagnostics(ctx context.Context, chargePointID, location string, start, stop *time.Time, retries, retryInterval *int) (string, error) {
	if m.GetDiagnosticsFunc != nil {
		return m.GetDiagnosticsFunc(ctx, chargePointID, location, start, stop, retries, retryInterval)
	}
	return "", nil
}

func (m *MockCommandService) UnlockConnector(ctx context.Context, chargePointID string, connectorID int) (*ports.CommandResult, error) {
	if m.UnlockConnectorFunc != nil {
		return m.UnlockConnectorFunc(ctx, chargePointID, connectorID)
	}
	return &ports.CommandResult{Status: "Unlocked"}, nil
}

func (m *MockCommandService) SendRaw(ctx context.Context, chargePointID, frame string) error {
	if m.SendRawFunc != nil {
		return m.SendRawFunc(ctx, chargePointID, frame)
	}
	return nil
}

// MockSessionDirectory is a mock implementation of SessionDirectory interface
type MockSessionDirectory struct {
	IsConnectedFunc  func(chargePointID string) bool
	ConnectedIDsFunc func() []string
	DisconnectFunc   func(chargePointID string) bool
	SweepFunc        func() []string
}

func (m *MockSessionDirectory) IsConnected(chargePointID string) bool {
	if m.IsConnectedFunc != nil {
		return m.IsConnectedFunc(chargePointID)
	}
	return false
}

func (m *MockSessionDirectory) ConnectedIDs() []string {
	if m.ConnectedIDsFunc != nil {
		return m.ConnectedIDsFunc()
	}
	return nil
}

func (m *MockSessionDirectory) Disconnect(chargePointID string) bool {
	if m.DisconnectFunc != nil {
		return m.DisconnectFunc(chargePointID)
	}
	return false
}

func (m *MockSessionDirectory) Sweep() []string {
	if m.SweepFunc != nil {
		return m.SweepFunc()
	}
	return nil
}
