package loads

import (
	"context"
	"log/slog"
	"time"

	"github.com/dropzone-hq/dropzone/internal/aircraft"
	"github.com/dropzone-hq/dropzone/internal/observability"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

// AircraftDirectory looks up aircraft for capacity defaults.
// *aircraft.Service satisfies it.
type AircraftDirectory interface {
	Get(ctx context.Context, id int64) (*aircraft.Aircraft, error)
}

// Service handles load scheduling business logic.
type Service struct {
	repo     RepositoryPort
	aircraft AircraftDirectory
	logger   *slog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewService(repo RepositoryPort, fleet AircraftDirectory, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		repo:     repo,
		aircraft: fleet,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*Load, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetSummary(ctx context.Context, id int64) (*Summary, error) {
	return s.repo.GetSummary(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListLoadsRequest) ([]Summary, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) Create(ctx context.Context, actorID int64, req CreateLoadRequest) (*Summary, error) {
	plane, err := s.aircraft.Get(ctx, req.AircraftID)
	if err != nil {
		return nil, err
	}

	maxLoad := plane.MaxLoad
	if req.MaxLoad != nil {
		maxLoad = *req.MaxLoad
	}
	if req.ReservedSpaces > maxLoad {
		return nil, shared.Invalid("Reserved spaces cannot exceed the load capacity")
	}

	l := Load{
		AircraftID:     req.AircraftID,
		Departure:      req.Departure,
		Status:         StatusForming,
		MaxLoad:        maxLoad,
		ReservedSpaces: req.ReservedSpaces,
		CreatedBy:      &actorID,
	}
	id, err := s.repo.Create(ctx, l)
	if err != nil {
		return nil, err
	}
	return s.repo.GetSummary(ctx, id)
}

func (s *Service) Update(ctx context.Context, actorID, id int64, req UpdateLoadRequest) (*Summary, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.AircraftID != nil && *req.AircraftID != l.AircraftID {
		plane, err := s.aircraft.Get(ctx, *req.AircraftID)
		if err != nil {
			return nil, err
		}
		l.AircraftID = plane.ID
		// A new airframe resets capacity unless the request pins it.
		if req.MaxLoad == nil {
			l.MaxLoad = plane.MaxLoad
		}
	}
	if req.Departure != nil {
		l.Departure = *req.Departure
	}
	if req.MaxLoad != nil {
		l.MaxLoad = *req.MaxLoad
	}
	if req.ReservedSpaces != nil {
		l.ReservedSpaces = *req.ReservedSpaces
	}
	if l.ReservedSpaces > l.MaxLoad {
		return nil, shared.Invalid("Reserved spaces cannot exceed the load capacity")
	}

	l.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, *l); err != nil {
		return nil, err
	}
	return s.repo.GetSummary(ctx, id)
}

// ChangeStatus applies a manual lifecycle transition.
func (s *Service) ChangeStatus(ctx context.Context, actorID, id int64, raw string) (*Summary, error) {
	target, err := ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(l.Status, target); err != nil {
		return nil, err
	}
	if l.Status != target {
		if err := s.repo.UpdateStatus(ctx, id, target, &actorID); err != nil {
			return nil, err
		}
		s.metrics.ObserveLoadTransition(string(target))
		s.logger.Info("load status changed",
			slog.Int64("load_id", id),
			slog.String("from", string(l.Status)),
			slog.String("to", string(target)),
			slog.Int64("actor_id", actorID))
	}
	return s.repo.GetSummary(ctx, id)
}

// Delete refuses while jumps are still assigned so nobody is silently
// unmanifested.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.repo.CountJumps(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return shared.Invalid("Load has jumps assigned. Remove them from the load first.")
	}
	return s.repo.Delete(ctx, id)
}

// Sweep advances overdue load statuses. The worker runs it every 30
// seconds; the CLI can run it once by hand.
func (s *Service) Sweep(ctx context.Context) ([]Transition, error) {
	transitions, err := s.repo.Sweep(ctx, s.now())
	if err != nil {
		return nil, err
	}
	for _, tr := range transitions {
		s.metrics.ObserveLoadTransition(string(tr.To))
		s.logger.Info("load status swept",
			slog.Int64("load_id", tr.LoadID),
			slog.String("to", string(tr.To)))
	}
	return transitions, nil
}
