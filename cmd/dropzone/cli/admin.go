package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/shared"
	"github.com/dropzone-hq/dropzone/internal/users"
)

// AdminCLI provisions local administrator accounts for password login.
type AdminCLI struct {
	pool  *pgxpool.Pool
	users *users.Repository
}

// NewAdminCLI initialises the helper on top of the given pool.
func NewAdminCLI(pool *pgxpool.Pool) *AdminCLI {
	return &AdminCLI{pool: pool, users: users.NewRepository(pool)}
}

// AdminResult reports what CreateAdmin did.
type AdminResult struct {
	UserID  int64
	Created bool
}

// CreateAdmin upserts a local admin: a new user gets the administrator role
// and the bcrypt password hash, an existing one gets the password reset and
// the role added if missing.
func (c *AdminCLI) CreateAdmin(ctx context.Context, username, password, firstName, lastName string) (AdminResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return AdminResult{}, errors.New("admin cli: username is required")
	}
	if len(password) < 8 {
		return AdminResult{}, errors.New("admin cli: password must be at least 8 characters")
	}
	if strings.TrimSpace(firstName) == "" {
		firstName = "Admin"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return AdminResult{}, fmt.Errorf("admin cli: hash password: %w", err)
	}
	hashed := string(hash)

	existing, err := c.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if _, err := c.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			existing.ID, hashed); err != nil {
			return AdminResult{}, fmt.Errorf("admin cli: set password: %w", err)
		}
		if !hasRole(existing.Roles, authz.RoleAdministrator) {
			roles := append(existing.Roles, authz.RoleAdministrator)
			if err := c.users.ReplaceRoles(ctx, existing.ID, roles); err != nil {
				return AdminResult{}, fmt.Errorf("admin cli: grant role: %w", err)
			}
		}
		return AdminResult{UserID: existing.ID}, nil
	case errors.Is(err, shared.ErrNotFound):
		id, err := c.users.Create(ctx, users.User{
			Username:     &username,
			FirstName:    firstName,
			LastName:     lastName,
			PasswordHash: &hashed,
			Roles:        []authz.Role{authz.RoleAdministrator},
		})
		if err != nil {
			return AdminResult{}, fmt.Errorf("admin cli: create user: %w", err)
		}
		return AdminResult{UserID: id, Created: true}, nil
	default:
		return AdminResult{}, fmt.Errorf("admin cli: look up user: %w", err)
	}
}

func hasRole(roles []authz.Role, want authz.Role) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}
