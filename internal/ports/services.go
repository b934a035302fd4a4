package ports

import (
	"context"
	"time"

	"github.com/seu-repo/ocpp-csms/internal/domain"
)

// CommandResult is the common accepted/rejected shape most commands reply
// with.
type CommandResult struct {
	Status string `json:"status"`
}

// ConfigurationKey is one entry of a GetConfiguration reply.
type ConfigurationKey struct {
	Key      string  `json:"key"`
	Readonly bool    `json:"readonly"`
	Value    *string `json:"value,omitempty"`
}

// GetConfigurationResult carries both known and unknown keys.
type GetConfigurationResult struct {
	ConfigurationKey []ConfigurationKey `json:"configuration_key"`
	UnknownKey       []string           `json:"unknown_key,omitempty"`
}

// DataTransferResult is the reply to a CSMS-originated DataTransfer.
type DataTransferResult struct {
	Status string `json:"status"`
	Data   string `json:"data,omitempty"`
}

// LocalListEntry is one authorization entry pushed via SendLocalList.
type LocalListEntry struct {
	IDTag       string     `json:"id_tag"`
	Status      string     `json:"status"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	ParentIDTag string     `json:"parent_id_tag,omitempty"`
}

// SendLocalListResult reports the charger's verdict and the list version
// that was pushed.
type SendLocalListResult struct {
	Status      string `json:"status"`
	ListVersion int    `json:"list_version"`
}

// ReserveNowRequest is the operator-facing reservation request.
type ReserveNowRequest struct {
	ReservationID int       `json:"reservation_id"`
	ConnectorID   int       `json:"connector_id"`
	IDTag         string    `json:"id_tag"`
	ParentIDTag   string    `json:"parent_id_tag,omitempty"`
	ExpiryDate    time.Time `json:"expiry_date"`
}

// ClearProfileFilter selects which mirrored charging profiles to clear.
// All set fields apply conjunctively; an empty filter clears everything.
type ClearProfileFilter struct {
	ProfileID   *int    `json:"charging_profile_id,omitempty"`
	ConnectorID *int    `json:"connector_id,omitempty"`
	Purpose     *string `json:"charging_profile_purpose,omitempty"`
	StackLevel  *int    `json:"stack_level,omitempty"`
}

// CompositeScheduleResult is the charger's computed schedule.
type CompositeScheduleResult struct {
	Status           string                   `json:"status"`
	ConnectorID      *int                     `json:"connector_id,omitempty"`
	ScheduleStart    *time.Time               `json:"schedule_start,omitempty"`
	ChargingSchedule *domain.ChargingSchedule `json:"charging_schedule,omitempty"`
}

// CommandService is the operator-facing surface of the protocol engine:
// every CSMS-originated OCPP 1.6 command, each failing fast with
// ErrChargerNotConnected when no live session exists.
type CommandService interface {
	RemoteStart(ctx context.Context, chargePointID, idTag string, connectorID *int) (*CommandResult, error)
	RemoteStop(ctx context.Context, chargePointID string, transactionID int) (*CommandResult, error)
	GetConfiguration(ctx context.Context, chargePointID string, keys []string) (*GetConfigurationResult, error)
	ChangeConfiguration(ctx context.Context, chargePointID, key, value string) (*CommandResult, error)
	ClearCache(ctx context.Context, chargePointID string) (*CommandResult, error)
	Reset(ctx context.Context, chargePointID, resetType string) (*CommandResult, error)
	TriggerMessage(ctx context.Context, chargePointID, requestedMessage string, connectorID *int) (*CommandResult, error)
	SendLocalList(ctx context.Context, chargePointID, updateType string, entries []LocalListEntry) (*SendLocalListResult, error)
	GetLocalListVersion(ctx context.Context, chargePointID string) (int, error)
	ClearLocalList(ctx context.Context, chargePointID string) (*SendLocalListResult, error)
	DataTransfer(ctx context.Context, chargePointID, vendorID, messageID string, data interface{}) (*DataTransferResult, error)
	ChangeAvailability(ctx context.Context, chargePointID string, connectorID int, availabilityType string) (*CommandResult, error)
	ReserveNow(ctx context.Context, chargePointID string, req ReserveNowRequest) (*CommandResult, error)
	CancelReservation(ctx context.Context, chargePointID string, reservationID int) (*CommandResult, error)
	SetChargingProfile(ctx context.Context, chargePointID string, profile domain.ChargingProfile) (*CommandResult, error)
	ClearChargingProfile(ctx context.Context, chargePointID string, filter ClearProfileFilter) (*CommandResult, error)
	GetCompositeSchedule(ctx context.Context, chargePointID string, connectorID, duration int, chargingRateUnit string) (*CompositeScheduleResult, error)
	UpdateFirmware(ctx context.Context, chargePointID, location string, retrieveDate time.Time, retries, retryInterval *int) error
	GetDiagnostics(ctx context.Context, chargePointID, location string, start, stop *time.Time, retries, retryInterval *int) (string, error)
	UnlockConnector(ctx context.Context, chargePointID string, connectorID int) (*CommandResult, error)
	SendRaw(ctx context.Context, chargePointID, frame string) error
}

// SessionDirectory exposes connection liveness to the operator API.
type SessionDirectory interface {
	IsConnected(chargePointID string) bool
	ConnectedIDs() []string
	Disconnect(chargePointID string) bool
	Sweep() []string
}
