package aircraft

import (
	"context"
)

// Service handles fleet business logic.
type Service struct {
	repo RepositoryPort
}

func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Aircraft, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListAircraftRequest) ([]Aircraft, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) Create(ctx context.Context, actorID int64, req CreateAircraftRequest) (*Aircraft, error) {
	t, err := ParseType(req.Type)
	if err != nil {
		return nil, err
	}
	a := Aircraft{
		Name:      req.Name,
		Type:      t,
		MaxLoad:   req.MaxLoad,
		CreatedBy: &actorID,
	}
	id, err := s.repo.Create(ctx, a)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, actorID, id int64, req UpdateAircraftRequest) (*Aircraft, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.Type != nil {
		t, err := ParseType(*req.Type)
		if err != nil {
			return nil, err
		}
		a.Type = t
	}
	if req.MaxLoad != nil {
		a.MaxLoad = *req.MaxLoad
	}
	a.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, *a); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Delete soft-deletes so past loads keep their aircraft reference.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	return s.repo.SoftDelete(ctx, id, actorID)
}
