package domain

import "time"

// AuthorizationStatus values for id-tag lookups, per OCPP 1.6.
type AuthorizationStatus = string

const (
	AuthAccepted     AuthorizationStatus = "Accepted"
	AuthBlocked      AuthorizationStatus = "Blocked"
	AuthExpired      AuthorizationStatus = "Expired"
	AuthInvalid      AuthorizationStatus = "Invalid"
	AuthConcurrentTx AuthorizationStatus = "ConcurrentTx"
)

// MaxIDTagLength is the OCPP 1.6 limit for idTag strings.
const MaxIDTagLength = 20

// IDTag is one row of the global authorization table. Tags are only ever
// created explicitly (operator CRUD or a SendLocalList mirror), never by an
// Authorize request.
type IDTag struct {
	Tag         string              `json:"id_tag" gorm:"primaryKey;size:20;column:tag"`
	Status      AuthorizationStatus `json:"status"`
	ExpiryDate  *time.Time          `json:"expiry_date,omitempty"`
	ParentIDTag string              `json:"parent_id_tag,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (IDTag) TableName() string { return "id_tags" }

// Authorized reports whether the tag grants access right now: status must
// be Accepted and the expiry, if set, still in the future.
func (t *IDTag) Authorized(now time.Time) bool {
	if t.Status != AuthAccepted {
		return false
	}
	if t.ExpiryDate != nil && !t.ExpiryDate.After(now) {
		return false
	}
	return true
}
