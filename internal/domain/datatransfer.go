package domain

import "time"

// DataTransferTemplate is an operator-defined packet the dashboard can send
// to any charger with one click.
type DataTransferTemplate struct {
	ID        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name"`
	VendorID  string    `json:"vendor_id"`
	MessageID string    `json:"message_id,omitempty"`
	Data      string    `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DataTransferTemplate) TableName() string { return "data_transfer_templates" }
