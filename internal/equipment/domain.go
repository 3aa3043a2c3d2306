// Package equipment tracks rigs and gear. Types, names and statuses are
// dictionary values so the admin can extend them without code changes.
package equipment

import (
	"time"
)

// Equipment is a single piece of gear identified by serial number.
type Equipment struct {
	ID           int64      `json:"id"`
	TypeID       int64      `json:"type_id"`
	NameID       int64      `json:"name_id"`
	StatusID     int64      `json:"status_id"`
	SerialNumber string     `json:"serial_number"`
	TypeValue    string     `json:"type,omitempty"`
	NameValue    string     `json:"name,omitempty"`
	StatusValue  string     `json:"status,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	CreatedBy    *int64     `json:"created_by,omitempty"`
	UpdatedBy    *int64     `json:"updated_by,omitempty"`
}

// CreateEquipmentRequest is the admin payload for registering gear.
type CreateEquipmentRequest struct {
	TypeID       int64  `json:"type_id" validate:"required,gt=0"`
	NameID       int64  `json:"name_id" validate:"required,gt=0"`
	StatusID     int64  `json:"status_id" validate:"required,gt=0"`
	SerialNumber string `json:"serial_number" validate:"required,max=100"`
}

// UpdateEquipmentRequest carries partial updates.
type UpdateEquipmentRequest struct {
	TypeID       *int64  `json:"type_id" validate:"omitempty,gt=0"`
	NameID       *int64  `json:"name_id" validate:"omitempty,gt=0"`
	StatusID     *int64  `json:"status_id" validate:"omitempty,gt=0"`
	SerialNumber *string `json:"serial_number" validate:"omitempty,max=100"`
}

// ListEquipmentRequest filters the gear listing.
type ListEquipmentRequest struct {
	TypeID   int64
	StatusID int64
	Limit    int
	Offset   int
}
