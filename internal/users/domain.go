// Package users manages dropzone member accounts and their role
// assignments. The role set stored here is the snapshot every access
// decision is computed from.
package users

import (
	"strings"
	"time"

	"github.com/dropzone-hq/dropzone/internal/authz"
)

// User represents a dropzone member. Telegram accounts leave password_hash
// empty; bootstrap admin accounts leave telegram_id empty.
type User struct {
	ID                 int64        `json:"id"`
	TelegramID         *int64       `json:"telegram_id,omitempty"`
	Username           *string      `json:"username,omitempty"`
	FirstName          string       `json:"first_name"`
	LastName           string       `json:"last_name"`
	DisplayName        *string      `json:"display_name,omitempty"`
	Email              *string      `json:"email,omitempty"`
	Phone              *string      `json:"phone,omitempty"`
	PasswordHash       *string      `json:"-"`
	LicenseDocumentURL *string      `json:"license_document_url,omitempty"`
	AvatarURL          *string      `json:"avatar_url,omitempty"`
	Roles              []authz.Role `json:"roles"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Name returns the display name, falling back to "First Last".
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != nil && strings.TrimSpace(*u.DisplayName) != "" {
		return strings.TrimSpace(*u.DisplayName)
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Subject converts the user into the snapshot the access gates consume.
func (u *User) Subject() *authz.Subject {
	if u == nil {
		return nil
	}
	return &authz.Subject{ID: u.ID, Roles: u.Roles}
}

// CreateUserRequest is the admin user-creation payload.
type CreateUserRequest struct {
	TelegramID  *int64   `json:"telegram_id,omitempty"`
	Username    *string  `json:"username,omitempty" validate:"omitempty,max=100"`
	FirstName   string   `json:"first_name" validate:"required,max=200"`
	LastName    string   `json:"last_name" validate:"max=200"`
	DisplayName *string  `json:"display_name,omitempty" validate:"omitempty,max=200"`
	Email       *string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string  `json:"phone,omitempty" validate:"omitempty,max=50"`
	Roles       []string `json:"roles" validate:"required,min=1"`
}

// UpdateUserRequest is the admin user-update payload. Nil fields stay
// untouched.
type UpdateUserRequest struct {
	Username    *string `json:"username,omitempty" validate:"omitempty,max=100"`
	FirstName   *string `json:"first_name,omitempty" validate:"omitempty,max=200"`
	LastName    *string `json:"last_name,omitempty" validate:"omitempty,max=200"`
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=200"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=50"`
}

// UpdateProfileRequest is the self-service profile payload. Role and
// credential fields are deliberately absent.
type UpdateProfileRequest struct {
	FirstName          *string `json:"first_name,omitempty" validate:"omitempty,max=200"`
	LastName           *string `json:"last_name,omitempty" validate:"omitempty,max=200"`
	DisplayName        *string `json:"display_name,omitempty" validate:"omitempty,max=200"`
	Email              *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone              *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	LicenseDocumentURL *string `json:"license_document_url,omitempty" validate:"omitempty,max=500"`
	AvatarURL          *string `json:"avatar_url,omitempty" validate:"omitempty,max=500"`
}

// ReplaceRolesRequest replaces a user's role set.
type ReplaceRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1"`
}

// ListUsersRequest filters the admin user listing.
type ListUsersRequest struct {
	Search string
	Role   authz.Role
	Limit  int
	Offset int
}
