package domain

import (
	"time"
)

// ChargePointStatus values from the OCPP 1.6 vocabulary. Chargers may report
// any string; these constants cover the standard set.
type ChargePointStatus = string

const (
	StatusAvailable     ChargePointStatus = "Available"
	StatusPreparing     ChargePointStatus = "Preparing"
	StatusCharging      ChargePointStatus = "Charging"
	StatusSuspendedEVSE ChargePointStatus = "SuspendedEVSE"
	StatusSuspendedEV   ChargePointStatus = "SuspendedEV"
	StatusFinishing     ChargePointStatus = "Finishing"
	StatusReserved      ChargePointStatus = "Reserved"
	StatusUnavailable   ChargePointStatus = "Unavailable"
	StatusFaulted       ChargePointStatus = "Faulted"

	// Connection-level statuses written by the session layer, not by
	// StatusNotification.
	StatusConnected    ChargePointStatus = "Connected"
	StatusDisconnected ChargePointStatus = "Disconnected"
)

// MaxChargerLogs caps the per-charger bounded log. Oldest entries are
// evicted beyond this.
const MaxChargerLogs = 5000

// ConnectorState tracks the last reported state of one physical connector.
type ConnectorState struct {
	Status         ChargePointStatus `json:"status"`
	ErrorCode      string            `json:"error_code,omitempty"`
	TransactionID  *int              `json:"transaction_id,omitempty"`
	IDTag          string            `json:"id_tag,omitempty"`
	StartTimestamp *time.Time        `json:"start_timestamp,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Reservation is a live ReserveNow booking on a charger.
type Reservation struct {
	ReservationID int       `json:"reservation_id"`
	ConnectorID   int       `json:"connector_id"`
	IDTag         string    `json:"id_tag"`
	ParentIDTag   string    `json:"parent_id_tag,omitempty"`
	ExpiryDate    time.Time `json:"expiry_date"`
	CreatedAt     time.Time `json:"created_at"`
}

// ChargingSchedulePeriod is one step of a charging schedule.
type ChargingSchedulePeriod struct {
	StartPeriod  int     `json:"start_period"`
	Limit        float64 `json:"limit"`
	NumberPhases *int    `json:"number_phases,omitempty"`
}

// ChargingSchedule is the time series attached to a profile.
type ChargingSchedule struct {
	Duration               *int                     `json:"duration,omitempty"`
	StartSchedule          *time.Time               `json:"start_schedule,omitempty"`
	ChargingRateUnit       string                   `json:"charging_rate_unit"`
	ChargingSchedulePeriod []ChargingSchedulePeriod `json:"charging_schedule_period"`
	MinChargingRate        *float64                 `json:"min_charging_rate,omitempty"`
}

// ChargingProfile mirrors a profile accepted by the charger via
// SetChargingProfile.
type ChargingProfile struct {
	ProfileID      int              `json:"charging_profile_id"`
	ConnectorID    int              `json:"connector_id"`
	StackLevel     int              `json:"stack_level"`
	Purpose        string           `json:"charging_profile_purpose"`
	Kind           string           `json:"charging_profile_kind"`
	RecurrencyKind string           `json:"recurrency_kind,omitempty"`
	TransactionID  *int             `json:"transaction_id,omitempty"`
	ValidFrom      *time.Time       `json:"valid_from,omitempty"`
	ValidTo        *time.Time       `json:"valid_to,omitempty"`
	Schedule       ChargingSchedule `json:"charging_schedule"`
	InstalledAt    time.Time        `json:"installed_at"`
}

// Vendor identifiers with post-transaction auto-stop behavior.
const (
	VendorJioBP = "Jio_BP"
	VendorMSIL  = "MSIL"
	VendorCZ    = "CZ"
)

// VendorSettings is a tagged union over the vendors that get deferred
// DataTransfer packets after StartTransaction. Vendor selects the arm;
// the remaining fields are meaningful only for that arm.
type VendorSettings struct {
	Vendor string `json:"vendor,omitempty"`

	// Jio_BP: independently switchable stop-energy and stop-time packets.
	StopEnergyEnabled bool `json:"stop_energy_enabled,omitempty"`
	StopEnergyValue   int  `json:"stop_energy_value,omitempty"`
	StopTimeEnabled   bool `json:"stop_time_enabled,omitempty"`
	StopTimeValue     int  `json:"stop_time_value,omitempty"`

	// MSIL and CZ: a single auto-stop packet.
	AutoStopEnabled bool `json:"auto_stop_enabled,omitempty"`
	AutoStopValue   int  `json:"auto_stop_value,omitempty"`
}

// DataTransferPacket records one inbound vendor frame for audit.
type DataTransferPacket struct {
	VendorID   string    `json:"vendor_id"`
	MessageID  string    `json:"message_id,omitempty"`
	Data       string    `json:"data,omitempty"`
	ObjectData bool      `json:"object_data,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// LogEntry is one line of a charger's operator-facing event log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Charger is the per-station aggregate. The nested maps are persisted as a
// single JSON document; all mutation goes through the store so that writers
// for one charger never interleave.
type Charger struct {
	ID                  string                          `json:"id" gorm:"primaryKey;size:32"`
	Vendor              string                          `json:"vendor,omitempty"`
	Model               string                          `json:"model,omitempty"`
	SerialNumber        string                          `json:"serial_number,omitempty"`
	FirmwareVersion     string                          `json:"firmware_version,omitempty"`
	Status              ChargePointStatus               `json:"status"`
	LastHeartbeat       *time.Time                      `json:"last_heartbeat,omitempty"`
	MeterValue          int                             `json:"meter_value"`
	CurrentTransaction  *int                            `json:"current_transaction,omitempty"`
	LastTransactionID   int                             `json:"last_transaction_id,omitempty"`
	Connectors          map[int]ConnectorState          `json:"connector_status" gorm:"serializer:json;type:jsonb"`
	Reservations        map[int]Reservation             `json:"reservations" gorm:"serializer:json;type:jsonb"`
	ChargingProfiles    map[int]map[int]ChargingProfile `json:"charging_profiles" gorm:"serializer:json;type:jsonb"`
	VendorSettings      VendorSettings                  `json:"vendor_settings" gorm:"serializer:json;type:jsonb"`
	DataTransferPackets []DataTransferPacket            `json:"data_transfer_packets" gorm:"serializer:json;type:jsonb"`
	FirmwareStatus      string                          `json:"firmware_status,omitempty"`
	DiagnosticsStatus   string                          `json:"diagnostics_status,omitempty"`
	Logs                []LogEntry                      `json:"logs" gorm:"serializer:json;type:jsonb"`
	LogsClearedAt       *time.Time                      `json:"logs_cleared_at,omitempty"`
	CreatedAt           time.Time                       `json:"created_at"`
	UpdatedAt           time.Time                       `json:"updated_at"`
}

// NewCharger returns an aggregate with all nested maps allocated.
func NewCharger(id string) *Charger {
	now := time.Now().UTC()
	return &Charger{
		ID:               id,
		Status:           StatusDisconnected,
		Connectors:       make(map[int]ConnectorState),
		Reservations:     make(map[int]Reservation),
		ChargingProfiles: make(map[int]map[int]ChargingProfile),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// EnsureMaps allocates any nil nested map. Aggregates loaded from storage
// may have nil maps when the stored document predates a field.
func (c *Charger) EnsureMaps() {
	if c.Connectors == nil {
		c.Connectors = make(map[int]ConnectorState)
	}
	if c.Reservations == nil {
		c.Reservations = make(map[int]Reservation)
	}
	if c.ChargingProfiles == nil {
		c.ChargingProfiles = make(map[int]map[int]ChargingProfile)
	}
}

// Clone returns a deep copy so readers never observe a half-applied
// mutation.
func (c *Charger) Clone() *Charger {
	cp := *c
	cp.Connectors = make(map[int]ConnectorState, len(c.Connectors))
	for k, v := range c.Connectors {
		cp.Connectors[k] = v
	}
	cp.Reservations = make(map[int]Reservation, len(c.Reservations))
	for k, v := range c.Reservations {
		cp.Reservations[k] = v
	}
	cp.ChargingProfiles = make(map[int]map[int]ChargingProfile, len(c.ChargingProfiles))
	for conn, profiles := range c.ChargingProfiles {
		inner := make(map[int]ChargingProfile, len(profiles))
		for id, p := range profiles {
			inner[id] = p
		}
		cp.ChargingProfiles[conn] = inner
	}
	cp.DataTransferPackets = append([]DataTransferPacket(nil), c.DataTransferPackets...)
	cp.Logs = append([]LogEntry(nil), c.Logs...)
	return &cp
}

// PruneExpiredReservations drops reservations whose expiry has passed.
// Returns true if anything was removed.
func (c *Charger) PruneExpiredReservations(now time.Time) bool {
	pruned := false
	for id, r := range c.Reservations {
		if !r.ExpiryDate.After(now) {
			delete(c.Reservations, id)
			pruned = true
		}
	}
	return pruned
}

// ActiveReservations returns the unexpired reservations, pruning expired
// ones in place.
func (c *Charger) ActiveReservations(now time.Time) []Reservation {
	c.PruneExpiredReservations(now)
	out := make([]Reservation, 0, len(c.Reservations))
	for _, r := range c.Reservations {
		out = append(out, r)
	}
	return out
}

// NextTransactionID picks a server-chosen transaction id: wall-clock
// seconds, bumped past the last issued id so two starts within the same
// second never collide.
func (c *Charger) NextTransactionID(now time.Time) int {
	id := int(now.Unix())
	if id <= c.LastTransactionID {
		id = c.LastTransactionID + 1
	}
	c.LastTransactionID = id
	return id
}
