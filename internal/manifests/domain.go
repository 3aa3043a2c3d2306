// Package manifests handles jump sign-ups. A member submits a manifest
// for a jump type, an instructor approves it into a real jump or declines
// it with a reason. The package also serves the manifest board, the page
// the manifest manager works from during a jumping day.
package manifests

import (
	"fmt"
	"time"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

// Status is a manifest lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusApproved, StatusDeclined:
		return Status(raw), nil
	}
	return "", shared.Invalid(fmt.Sprintf("Unknown manifest status %q", raw))
}

// Manifest is a member's request to jump. It stays pending until an
// instructor decides on it; approval spawns a jump record, decline keeps
// the reason for the member to read.
type Manifest struct {
	ID              int64   `json:"id"`
	UserID          int64   `json:"user_id"`
	JumpTypeID      int64   `json:"jump_type_id"`
	Status          Status  `json:"status"`
	DeclineReason   *string `json:"decline_reason,omitempty"`
	TandemBookingID *int64  `json:"tandem_booking_id,omitempty"`
	EquipmentIDs    []int64 `json:"equipment_ids,omitempty"`

	UserName     string `json:"user_name,omitempty"`
	JumpTypeName string `json:"jump_type_name,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	CreatedBy *int64     `json:"created_by,omitempty"`
	UpdatedBy *int64     `json:"updated_by,omitempty"`
}

// CreateManifestRequest is the member payload for a new sign-up. The
// tandem booking id links an instructor's manifest to the passenger who
// booked the ride.
type CreateManifestRequest struct {
	JumpTypeID      int64   `json:"jump_type_id" validate:"required,gt=0"`
	EquipmentIDs    []int64 `json:"equipment_ids"`
	TandemBookingID *int64  `json:"tandem_booking_id" validate:"omitempty,gt=0"`
}

// UpdateManifestRequest carries partial changes to a pending manifest.
// Status is not part of it: decisions go through the approve and decline
// endpoints.
type UpdateManifestRequest struct {
	JumpTypeID   *int64   `json:"jump_type_id" validate:"omitempty,gt=0"`
	EquipmentIDs *[]int64 `json:"equipment_ids"`
}

// ApproveRequest optionally names the load the new jump goes on. Without
// one the jump lands in the board's unassigned pool.
type ApproveRequest struct {
	LoadID *int64 `json:"load_id" validate:"omitempty,gt=0"`
}

// DeclineRequest refuses a manifest. The reason is shown to the member.
type DeclineRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ListManifestsRequest filters the reviewer listing.
type ListManifestsRequest struct {
	UserID int64
	Status *Status
	Limit  int
	Offset int
}
