package equipment

import (
	"context"
	"errors"

	"github.com/dropzone-hq/dropzone/internal/dictionaries"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

// Dictionary names and system values the equipment module depends on.
// The seed script creates them.
const (
	StatusDictionary = "equipment_status"
	StatusAvailable  = "Available"
)

// StatusSource resolves dictionary values by dictionary name.
// *dictionaries.Service satisfies it.
type StatusSource interface {
	ValuesByName(ctx context.Context, name string, activeOnly bool) ([]dictionaries.Value, error)
}

// Service handles equipment business logic.
type Service struct {
	repo     RepositoryPort
	statuses StatusSource
}

func NewService(repo RepositoryPort, statuses StatusSource) *Service {
	return &Service{repo: repo, statuses: statuses}
}

func (s *Service) Get(ctx context.Context, id int64) (*Equipment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListEquipmentRequest) ([]Equipment, error) {
	return s.repo.List(ctx, req)
}

// Available lists gear in the "Available" status, optionally narrowed to a
// type, for manifest equipment pickers.
func (s *Service) Available(ctx context.Context, typeID int64) ([]Equipment, error) {
	statusID, err := s.availableStatusID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ListEquipmentRequest{TypeID: typeID, StatusID: statusID})
}

func (s *Service) availableStatusID(ctx context.Context) (int64, error) {
	values, err := s.statuses.ValuesByName(ctx, StatusDictionary, true)
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		if v.Value == StatusAvailable {
			return v.ID, nil
		}
	}
	return 0, shared.Invalid("Equipment status dictionary has no Available value")
}

func (s *Service) Create(ctx context.Context, actorID int64, req CreateEquipmentRequest) (*Equipment, error) {
	if err := s.checkSerialFree(ctx, req.SerialNumber, 0); err != nil {
		return nil, err
	}
	e := Equipment{
		TypeID:       req.TypeID,
		NameID:       req.NameID,
		StatusID:     req.StatusID,
		SerialNumber: req.SerialNumber,
		CreatedBy:    &actorID,
	}
	id, err := s.repo.Create(ctx, e)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, actorID, id int64, req UpdateEquipmentRequest) (*Equipment, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.TypeID != nil {
		e.TypeID = *req.TypeID
	}
	if req.NameID != nil {
		e.NameID = *req.NameID
	}
	if req.StatusID != nil {
		e.StatusID = *req.StatusID
	}
	if req.SerialNumber != nil && *req.SerialNumber != e.SerialNumber {
		if err := s.checkSerialFree(ctx, *req.SerialNumber, id); err != nil {
			return nil, err
		}
		e.SerialNumber = *req.SerialNumber
	}
	e.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, *e); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// checkSerialFree is a pre-check for a friendlier error. The unique
// constraint still backs it up under concurrent writes.
func (s *Service) checkSerialFree(ctx context.Context, serial string, selfID int64) error {
	existing, err := s.repo.GetBySerial(ctx, serial)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return shared.Invalid("Equipment with this serial number already exists")
}
