package users

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

// Service handles user business logic.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// Subject resolves the role snapshot consumed by the access gates.
func (s *Service) Subject(ctx context.Context, userID int64) (*authz.Subject, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Subject(), nil
}

// List returns users matching the filter plus the unpaged total.
func (s *Service) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	return s.repo.List(ctx, req)
}

// Create registers a new user with the given role set.
func (s *Service) Create(ctx context.Context, actorID int64, req CreateUserRequest) (*User, error) {
	roles, err := parseRoles(req.Roles)
	if err != nil {
		return nil, err
	}
	id, err := s.repo.Create(ctx, User{
		TelegramID:  req.TelegramID,
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Phone:       req.Phone,
		Roles:       roles,
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "user.create", id, map[string]any{"roles": req.Roles})
	return s.repo.Get(ctx, id)
}

// UpdateAdmin applies an admin edit to another user's profile.
func (s *Service) UpdateAdmin(ctx context.Context, id int64, req UpdateUserRequest) (*User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Username != nil {
		user.Username = req.Username
	}
	applyProfileFields(user, UpdateProfileRequest{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Phone:       req.Phone,
	})
	if err := s.repo.Update(ctx, *user); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// UpdateProfile applies a self-service profile edit.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*User, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	applyProfileFields(user, req)
	if err := s.repo.Update(ctx, *user); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

// ReplaceRoles swaps a user's role set. The change is audited because it
// rewrites what the access gates will decide from then on.
func (s *Service) ReplaceRoles(ctx context.Context, actorID, userID int64, rawRoles []string) (*User, error) {
	roles, err := parseRoles(rawRoles)
	if err != nil {
		return nil, err
	}
	before, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceRoles(ctx, userID, roles); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "user.roles.replace", userID, map[string]any{
		"before": rolesToStrings(before.Roles),
		"after":  rawRoles,
	})
	return s.repo.Get(ctx, userID)
}

// Delete removes a user. Administrators cannot delete their own account.
func (s *Service) Delete(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return shared.Invalid("You cannot delete your own account.")
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "user.delete", userID, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}

func applyProfileFields(user *User, req UpdateProfileRequest) {
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.DisplayName != nil {
		user.DisplayName = req.DisplayName
	}
	if req.Email != nil {
		user.Email = req.Email
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.LicenseDocumentURL != nil {
		user.LicenseDocumentURL = req.LicenseDocumentURL
	}
	if req.AvatarURL != nil {
		user.AvatarURL = req.AvatarURL
	}
}

func parseRoles(raw []string) ([]authz.Role, error) {
	roles := make([]authz.Role, 0, len(raw))
	for _, value := range raw {
		role, err := authz.ParseRole(value)
		if err != nil {
			return nil, shared.Invalid(fmt.Sprintf("Unknown role %q.", value))
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return nil, shared.Invalid("At least one role is required.")
	}
	return roles, nil
}

func rolesToStrings(roles []authz.Role) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, role.String())
	}
	return out
}
