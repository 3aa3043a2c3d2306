// Package aircraft manages the dropzone fleet. Aircraft are soft-deleted so
// historical loads keep a valid reference.
package aircraft

import (
	"fmt"
	"time"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

// Type classifies an aircraft. The set is closed; load planning and seed
// data rely on these exact strings.
type Type string

const (
	TypePlane      Type = "plane"
	TypeHelicopter Type = "helicopter"
	TypeBalloon    Type = "balloon"
)

// AllTypes lists every known aircraft type.
var AllTypes = []Type{TypePlane, TypeHelicopter, TypeBalloon}

// ParseType validates a raw type string.
func ParseType(raw string) (Type, error) {
	for _, t := range AllTypes {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", shared.Invalid(fmt.Sprintf("Unknown aircraft type %q", raw))
}

// Aircraft is a jump platform with a seat capacity.
type Aircraft struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Type      Type       `json:"type"`
	MaxLoad   int        `json:"max_load"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedBy *int64     `json:"created_by,omitempty"`
	UpdatedBy *int64     `json:"updated_by,omitempty"`
	DeletedBy *int64     `json:"deleted_by,omitempty"`
}

// CreateAircraftRequest is the admin payload for registering an aircraft.
type CreateAircraftRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Type    string `json:"type" validate:"required"`
	MaxLoad int    `json:"max_load" validate:"required,gt=0"`
}

// UpdateAircraftRequest carries partial updates. Nil fields are left
// untouched.
type UpdateAircraftRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=200"`
	Type    *string `json:"type"`
	MaxLoad *int    `json:"max_load" validate:"omitempty,gt=0"`
}

// ListAircraftRequest filters the fleet listing. Deleted aircraft are
// hidden unless IncludeDeleted is set.
type ListAircraftRequest struct {
	Search         string
	Type           Type
	IncludeDeleted bool
	Limit          int
	Offset         int
}
