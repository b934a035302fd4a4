package domain

import (
	"encoding/json"
	"time"
)

// Message queue subjects for charger lifecycle events.
const (
	SubjectChargerConnected    = "ocpp.charger.connected"
	SubjectChargerDisconnected = "ocpp.charger.disconnected"
	SubjectTransactionStarted  = "ocpp.transaction.started"
	SubjectTransactionStopped  = "ocpp.transaction.stopped"
	SubjectStatusChanged       = "ocpp.status.changed"
)

// ChargerEvent is the envelope published on the message queue and fanned
// out to dashboard websocket clients.
type ChargerEvent struct {
	Type          string    `json:"type"`
	ChargePointID string    `json:"charge_point_id"`
	ConnectorID   int       `json:"connector_id,omitempty"`
	TransactionID int       `json:"transaction_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Encode marshals the event; a ChargerEvent always marshals cleanly.
func (e ChargerEvent) Encode() []byte {
	b, _ := json.Marshal(e)
	return b
}
