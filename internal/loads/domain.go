// Package loads schedules aircraft takeoffs. A load moves forming ->
// on_call -> departed, either by the periodic sweep or by a manual admin
// action. Occupancy splits seats into a public pool and a reserved pool.
package loads

import (
	"fmt"
	"time"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

// Status is a load lifecycle state.
type Status string

const (
	StatusForming  Status = "forming"
	StatusOnCall   Status = "on_call"
	StatusDeparted Status = "departed"
)

// AllStatuses lists the lifecycle states in order.
var AllStatuses = []Status{StatusForming, StatusOnCall, StatusDeparted}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	for _, s := range AllStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", shared.Invalid(fmt.Sprintf("Unknown load status %q", raw))
}

// ValidateTransition checks a manual status change. The lifecycle only
// moves forward; a departed load never comes back.
func ValidateTransition(current, target Status) error {
	if current == target {
		return nil
	}
	switch current {
	case StatusForming:
		if target == StatusOnCall || target == StatusDeparted {
			return nil
		}
	case StatusOnCall:
		if target == StatusDeparted {
			return nil
		}
	}
	return shared.Invalid(fmt.Sprintf("Cannot change load status from %s to %s", current, target))
}

// Load is a scheduled takeoff. MaxLoad is copied from the aircraft at
// creation and may be lowered for weight-restricted flights.
type Load struct {
	ID             int64      `json:"id"`
	AircraftID     int64      `json:"aircraft_id"`
	AircraftName   string     `json:"aircraft_name,omitempty"`
	Departure      time.Time  `json:"departure"`
	Status         Status     `json:"status"`
	MaxLoad        int        `json:"max_load"`
	ReservedSpaces int        `json:"reserved_spaces"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	CreatedBy      *int64     `json:"created_by,omitempty"`
	UpdatedBy      *int64     `json:"updated_by,omitempty"`
}

// Spaces is the occupancy breakdown of a load. Only manifested jumps
// occupy seats.
type Spaces struct {
	TotalSpaces       int `json:"total_spaces"`
	ReservedSpaces    int `json:"reserved_spaces"`
	OccupiedPublic    int `json:"occupied_public_spaces"`
	OccupiedReserved  int `json:"occupied_reserved_spaces"`
	RemainingPublic   int `json:"remaining_public_spaces"`
	RemainingReserved int `json:"remaining_reserved_spaces"`
}

// ComputeSpaces derives the occupancy breakdown. The public pool is
// whatever the reservation does not claim; remaining counts may go
// negative when a load is overbooked, which callers surface as a warning.
func ComputeSpaces(maxLoad, reservedSpaces, occupiedPublic, occupiedReserved int) Spaces {
	return Spaces{
		TotalSpaces:       maxLoad,
		ReservedSpaces:    reservedSpaces,
		OccupiedPublic:    occupiedPublic,
		OccupiedReserved:  occupiedReserved,
		RemainingPublic:   maxLoad - reservedSpaces - occupiedPublic,
		RemainingReserved: reservedSpaces - occupiedReserved,
	}
}

// Summary is a load with its occupancy and its position among the day's
// takeoffs.
type Summary struct {
	Load
	IndexNumber int `json:"index_number"`
	Spaces
}

// Transition records one sweep or manual status move.
type Transition struct {
	LoadID int64  `json:"load_id"`
	To     Status `json:"to"`
}

// CreateLoadRequest schedules a new takeoff. MaxLoad defaults to the
// aircraft capacity when omitted.
type CreateLoadRequest struct {
	AircraftID     int64     `json:"aircraft_id" validate:"required,gt=0"`
	Departure      time.Time `json:"departure" validate:"required"`
	MaxLoad        *int      `json:"max_load" validate:"omitempty,gt=0"`
	ReservedSpaces int       `json:"reserved_spaces" validate:"gte=0"`
}

// UpdateLoadRequest carries partial updates.
type UpdateLoadRequest struct {
	AircraftID     *int64     `json:"aircraft_id" validate:"omitempty,gt=0"`
	Departure      *time.Time `json:"departure"`
	MaxLoad        *int       `json:"max_load" validate:"omitempty,gt=0"`
	ReservedSpaces *int       `json:"reserved_spaces" validate:"omitempty,gte=0"`
}

// StatusUpdateRequest is the manual transition payload.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListLoadsRequest filters the schedule. HideOld drops loads from
// previous days.
type ListLoadsRequest struct {
	From        *time.Time
	To          *time.Time
	AircraftIDs []int64
	Statuses    []Status
	HideOld     bool
	Limit       int
	Offset      int
}
