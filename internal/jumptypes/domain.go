// Package jumptypes manages the catalog of jump programs: who may book
// each one and which staff must accompany it. Tandem jumps, for example,
// require a tandem instructor whose own jump is logged under a staff
// jump type.
package jumptypes

import (
	"time"

	"github.com/dropzone-hq/dropzone/internal/authz"
)

// JumpType describes a bookable jump program.
type JumpType struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	ShortName    string             `json:"short_name"`
	Description  *string            `json:"description,omitempty"`
	ExitAltitude *int               `json:"exit_altitude,omitempty"`
	Price        *int               `json:"price,omitempty"`
	IsAvailable  bool               `json:"is_available"`
	AllowedRoles []authz.Role       `json:"allowed_roles"`
	Staff        []StaffRequirement `json:"additional_staff"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    *time.Time         `json:"updated_at,omitempty"`
	DeletedAt    *time.Time         `json:"deleted_at,omitempty"`
	CreatedBy    *int64             `json:"created_by,omitempty"`
	UpdatedBy    *int64             `json:"updated_by,omitempty"`
	DeletedBy    *int64             `json:"deleted_by,omitempty"`
}

// StaffRequirement names a role that must join every jump of this type,
// and the jump type the staff member's own jump defaults to.
type StaffRequirement struct {
	ID                int64      `json:"id,omitempty"`
	RequiredRole      authz.Role `json:"staff_required_role"`
	DefaultJumpTypeID *int64     `json:"staff_default_jump_type_id,omitempty"`
}

// AllowedFor reports whether a subject may book this jump type. A type
// with no role restrictions is open to anyone.
func (jt *JumpType) AllowedFor(u *authz.Subject) bool {
	if len(jt.AllowedRoles) == 0 {
		return true
	}
	return authz.HasAnyRole(u, jt.AllowedRoles)
}

// StaffRequirementInput carries one staff requirement in write requests.
type StaffRequirementInput struct {
	StaffRequiredRole      string `json:"staff_required_role" validate:"required"`
	StaffDefaultJumpTypeID *int64 `json:"staff_default_jump_type_id"`
}

// CreateJumpTypeRequest is the admin payload for a new jump program.
type CreateJumpTypeRequest struct {
	Name            string                  `json:"name" validate:"required,max=200"`
	ShortName       string                  `json:"short_name" validate:"required,max=50"`
	Description     *string                 `json:"description"`
	ExitAltitude    *int                    `json:"exit_altitude" validate:"omitempty,gt=0"`
	Price           *int                    `json:"price" validate:"omitempty,gte=0"`
	IsAvailable     *bool                   `json:"is_available"`
	AllowedRoles    []string                `json:"allowed_roles"`
	AdditionalStaff []StaffRequirementInput `json:"additional_staff"`
}

// UpdateJumpTypeRequest carries partial updates. AllowedRoles and
// AdditionalStaff, when present, replace the whole set.
type UpdateJumpTypeRequest struct {
	Name            *string                  `json:"name" validate:"omitempty,max=200"`
	ShortName       *string                  `json:"short_name" validate:"omitempty,max=50"`
	Description     *string                  `json:"description"`
	ExitAltitude    *int                     `json:"exit_altitude" validate:"omitempty,gt=0"`
	Price           *int                     `json:"price" validate:"omitempty,gte=0"`
	IsAvailable     *bool                    `json:"is_available"`
	AllowedRoles    *[]string                `json:"allowed_roles"`
	AdditionalStaff *[]StaffRequirementInput `json:"additional_staff"`
}

// ListJumpTypesRequest filters the catalog listing.
type ListJumpTypesRequest struct {
	Search      string
	AllowedRole authz.Role
	IsAvailable *bool
	Limit       int
	Offset      int
}
