package jumptypes

import (
	"context"
	"fmt"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

// Service handles jump type business logic.
type Service struct {
	repo RepositoryPort
}

func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*JumpType, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListJumpTypesRequest) ([]JumpType, error) {
	return s.repo.List(ctx, req)
}

// Available returns the jump types the subject can book right now:
// available for manifesting and open to one of the subject's roles.
func (s *Service) Available(ctx context.Context, u *authz.Subject) ([]JumpType, error) {
	available := true
	all, err := s.repo.List(ctx, ListJumpTypesRequest{IsAvailable: &available})
	if err != nil {
		return nil, err
	}
	out := make([]JumpType, 0, len(all))
	for _, jt := range all {
		if jt.AllowedFor(u) {
			out = append(out, jt)
		}
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, actorID int64, req CreateJumpTypeRequest) (*JumpType, error) {
	roles, err := parseRoles(req.AllowedRoles)
	if err != nil {
		return nil, err
	}
	staff, err := parseStaff(req.AdditionalStaff)
	if err != nil {
		return nil, err
	}

	jt := JumpType{
		Name:         req.Name,
		ShortName:    req.ShortName,
		Description:  req.Description,
		ExitAltitude: req.ExitAltitude,
		Price:        req.Price,
		IsAvailable:  true,
		AllowedRoles: roles,
		Staff:        staff,
		CreatedBy:    &actorID,
	}
	if req.IsAvailable != nil {
		jt.IsAvailable = *req.IsAvailable
	}

	id, err := s.repo.Create(ctx, jt)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, actorID, id int64, req UpdateJumpTypeRequest) (*JumpType, error) {
	jt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		jt.Name = *req.Name
	}
	if req.ShortName != nil {
		jt.ShortName = *req.ShortName
	}
	if req.Description != nil {
		jt.Description = req.Description
	}
	if req.ExitAltitude != nil {
		jt.ExitAltitude = req.ExitAltitude
	}
	if req.Price != nil {
		jt.Price = req.Price
	}
	if req.IsAvailable != nil {
		jt.IsAvailable = *req.IsAvailable
	}

	replaceRoles := req.AllowedRoles != nil
	if replaceRoles {
		roles, err := parseRoles(*req.AllowedRoles)
		if err != nil {
			return nil, err
		}
		jt.AllowedRoles = roles
	}
	replaceStaff := req.AdditionalStaff != nil
	if replaceStaff {
		staff, err := parseStaff(*req.AdditionalStaff)
		if err != nil {
			return nil, err
		}
		jt.Staff = staff
	}

	jt.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, *jt, replaceRoles, replaceStaff); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	return s.repo.SoftDelete(ctx, id, actorID)
}

func parseRoles(raw []string) ([]authz.Role, error) {
	out := make([]authz.Role, 0, len(raw))
	seen := map[authz.Role]struct{}{}
	for _, r := range raw {
		role, err := authz.ParseRole(r)
		if err != nil {
			return nil, shared.Invalid(fmt.Sprintf("Unknown role %q", r))
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out, nil
}

func parseStaff(raw []StaffRequirementInput) ([]StaffRequirement, error) {
	out := make([]StaffRequirement, 0, len(raw))
	for _, in := range raw {
		role, err := authz.ParseRole(in.StaffRequiredRole)
		if err != nil {
			return nil, shared.Invalid(fmt.Sprintf("Unknown staff role %q", in.StaffRequiredRole))
		}
		out = append(out, StaffRequirement{
			RequiredRole:      role,
			DefaultJumpTypeID: in.StaffDefaultJumpTypeID,
		})
	}
	return out, nil
}
