// Package jumps tracks planned and performed jumps. A jump is the unit the
// manifest board moves on and off loads; staff jumps hang off a parent jump
// and follow it through assignment and removal.
package jumps

import "time"

// Jump is one seat's worth of jumping. A manifested jump without a load
// sits in the board's unassigned pool; staff jumps carry ParentJumpID and
// never exist apart from their parent's load assignment.
type Jump struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	JumpTypeID   int64      `json:"jump_type_id"`
	IsManifested bool       `json:"is_manifested"`
	LoadID       *int64     `json:"load_id,omitempty"`
	Reserved     bool       `json:"reserved"`
	Comment      *string    `json:"comment,omitempty"`
	ParentJumpID *int64     `json:"parent_jump_id,omitempty"`
	PassengerID  *int64     `json:"passenger_id,omitempty"`
	JumpDate     *time.Time `json:"jump_date,omitempty"`
	EquipmentIDs []int64    `json:"equipment_ids,omitempty"`

	UserName      string  `json:"user_name,omitempty"`
	JumpTypeName  string  `json:"jump_type_name,omitempty"`
	JumpTypeShort string  `json:"jump_type_short_name,omitempty"`
	AircraftName  *string `json:"aircraft_name,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	CreatedBy *int64     `json:"created_by,omitempty"`
	UpdatedBy *int64     `json:"updated_by,omitempty"`
}

// CreateJumpRequest is the admin payload for a manual jump record.
type CreateJumpRequest struct {
	UserID       int64      `json:"user_id" validate:"required"`
	JumpTypeID   int64      `json:"jump_type_id" validate:"required"`
	IsManifested bool       `json:"is_manifested"`
	Reserved     bool       `json:"reserved"`
	Comment      *string    `json:"comment,omitempty"`
	PassengerID  *int64     `json:"passenger_id,omitempty"`
	JumpDate     *time.Time `json:"jump_date,omitempty"`
	EquipmentIDs []int64    `json:"equipment_ids,omitempty"`
}

// UpdateJumpRequest carries partial jump changes. LoadID is decoded only to
// be rejected: load membership changes go through the assignment endpoints.
type UpdateJumpRequest struct {
	JumpTypeID   *int64     `json:"jump_type_id,omitempty"`
	IsManifested *bool      `json:"is_manifested,omitempty"`
	Reserved     *bool      `json:"reserved,omitempty"`
	Comment      *string    `json:"comment,omitempty"`
	PassengerID  *int64     `json:"passenger_id,omitempty"`
	JumpDate     *time.Time `json:"jump_date,omitempty"`
	LoadID       *int64     `json:"load_id,omitempty"`
	EquipmentIDs *[]int64   `json:"equipment_ids,omitempty"`
}

// ListJumpsRequest filters the admin listing.
type ListJumpsRequest struct {
	UserID       int64
	JumpTypeID   int64
	LoadID       int64
	ParentJumpID int64
	IsManifested *bool
	HasParent    *bool
	HasLoad      *bool
	Limit        int
	Offset       int
}

// LogbookRequest filters a member's personal jump history.
type LogbookRequest struct {
	From        *time.Time
	To          *time.Time
	JumpTypeIDs []int64
	AircraftIDs []int64
	Limit       int
	Offset      int
}

// Stats summarises a member's performed jumps.
type Stats struct {
	TotalJumps int            `json:"total_jumps"`
	ByType     map[string]int `json:"by_type"`
}

// AssignRequest puts a jump, together with its required staff, on a load.
// StaffAssignments maps each required staff role to the user taking it.
type AssignRequest struct {
	JumpID           int64            `json:"jump_id" validate:"required"`
	LoadID           int64            `json:"load_id" validate:"required"`
	Reserved         bool             `json:"reserved"`
	StaffAssignments map[string]int64 `json:"staff_assignments,omitempty"`
}

// AssignResult reports the outcome of a load assignment. Warning is set
// when the load lacked space; the assignment still goes through and the
// manifest manager decides how to resolve the overbooking.
type AssignResult struct {
	Success         bool    `json:"success"`
	Message         string  `json:"message"`
	Warning         *string `json:"warning,omitempty"`
	AssignedJumpIDs []int64 `json:"assigned_jump_ids"`
}

// RemoveRequest takes a jump off its load.
type RemoveRequest struct {
	JumpID int64 `json:"jump_id" validate:"required"`
}

// RemoveResult lists the jump that left the load and the staff jumps
// deleted with it.
type RemoveResult struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message"`
	RemovedJumpIDs []int64 `json:"removed_jump_ids"`
}
