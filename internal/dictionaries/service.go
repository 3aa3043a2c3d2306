package dictionaries

import (
	"context"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

// Service handles dictionary business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Dictionary, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*Dictionary, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateDictionaryRequest) (*Dictionary, error) {
	id, err := s.repo.Create(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateDictionaryRequest) (*Dictionary, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		d.Name = *req.Name
	}
	if req.IsActive != nil {
		d.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, *d); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	values, err := s.repo.ListValues(ctx, id, false)
	if err != nil {
		return err
	}
	for _, v := range values {
		if v.IsSystem {
			return shared.Invalid("Dictionaries containing system values cannot be deleted.")
		}
	}
	return s.repo.Delete(ctx, id)
}

// ValuesByName resolves a dictionary by its well-known name and lists its
// values. Equipment forms use this for type and status pickers.
func (s *Service) ValuesByName(ctx context.Context, name string, activeOnly bool) ([]Value, error) {
	d, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.repo.ListValues(ctx, d.ID, activeOnly)
}

func (s *Service) ListValues(ctx context.Context, dictionaryID int64, activeOnly bool) ([]Value, error) {
	if _, err := s.repo.Get(ctx, dictionaryID); err != nil {
		return nil, err
	}
	return s.repo.ListValues(ctx, dictionaryID, activeOnly)
}

func (s *Service) CreateValue(ctx context.Context, dictionaryID int64, req CreateValueRequest) (*Value, error) {
	if _, err := s.repo.Get(ctx, dictionaryID); err != nil {
		return nil, err
	}
	id, err := s.repo.CreateValue(ctx, dictionaryID, req.Value)
	if err != nil {
		return nil, err
	}
	return s.repo.GetValue(ctx, id)
}

func (s *Service) UpdateValue(ctx context.Context, id int64, req UpdateValueRequest) (*Value, error) {
	v, err := s.repo.GetValue(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Value != nil {
		v.Value = *req.Value
	}
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}
	if err := s.repo.UpdateValue(ctx, *v); err != nil {
		return nil, err
	}
	return s.repo.GetValue(ctx, id)
}

// DeleteValue removes a value unless it is a system value other code
// depends on.
func (s *Service) DeleteValue(ctx context.Context, id int64) error {
	v, err := s.repo.GetValue(ctx, id)
	if err != nil {
		return err
	}
	if v.IsSystem {
		return shared.Invalid("System values cannot be deleted.")
	}
	return s.repo.DeleteValue(ctx, id)
}
