package jumps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/jumptypes"
	"github.com/dropzone-hq/dropzone/internal/loads"
	"github.com/dropzone-hq/dropzone/internal/observability"
	"github.com/dropzone-hq/dropzone/internal/shared"
	"github.com/dropzone-hq/dropzone/internal/users"
)

// UserDirectory resolves jumpers and staff members.
type UserDirectory interface {
	Get(ctx context.Context, id int64) (*users.User, error)
}

// JumpTypeDirectory resolves jump programs and their staff requirements.
type JumpTypeDirectory interface {
	Get(ctx context.Context, id int64) (*jumptypes.JumpType, error)
}

// LoadBoard resolves loads together with their occupancy.
type LoadBoard interface {
	Get(ctx context.Context, id int64) (*loads.Load, error)
	GetSummary(ctx context.Context, id int64) (*loads.Summary, error)
}

// Service implements jump business logic, including the board's
// assign/remove flow.
type Service struct {
	repo    RepositoryPort
	users   UserDirectory
	types   JumpTypeDirectory
	loads   LoadBoard
	locker  *shared.Locker
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewService(repo RepositoryPort, users UserDirectory, types JumpTypeDirectory, board LoadBoard,
	locker *shared.Locker, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		types:   types,
		loads:   board,
		locker:  locker,
		logger:  logger,
		metrics: metrics,
	}
}

// Get returns one jump. Members see only their own jumps, admins see all.
func (s *Service) Get(ctx context.Context, viewer *authz.Subject, id int64) (*Jump, error) {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.UserID != viewer.ID && !authz.IsAdmin(viewer) {
		return nil, shared.ErrForbidden
	}
	return j, nil
}

func (s *Service) List(ctx context.Context, req ListJumpsRequest) ([]Jump, error) {
	return s.repo.List(ctx, req)
}

// ListByLoad returns every jump on a load, staff jumps included.
func (s *Service) ListByLoad(ctx context.Context, loadID int64) ([]Jump, error) {
	if _, err := s.loads.Get(ctx, loadID); err != nil {
		return nil, err
	}
	return s.repo.ListByLoad(ctx, loadID)
}

// Logbook returns a member's performed jumps, newest first.
func (s *Service) Logbook(ctx context.Context, userID int64, req LogbookRequest) ([]Jump, error) {
	return s.repo.Logbook(ctx, userID, req)
}

// Stats summarises a member's performed jumps by jump type.
func (s *Service) Stats(ctx context.Context, userID int64, from, to *time.Time) (*Stats, error) {
	return s.repo.Stats(ctx, userID, from, to)
}

func (s *Service) Create(ctx context.Context, actorID int64, req CreateJumpRequest) (*Jump, error) {
	if _, err := s.users.Get(ctx, req.UserID); err != nil {
		return nil, err
	}
	if _, err := s.types.Get(ctx, req.JumpTypeID); err != nil {
		return nil, err
	}

	j := Jump{
		UserID:       req.UserID,
		JumpTypeID:   req.JumpTypeID,
		IsManifested: req.IsManifested,
		Reserved:     req.Reserved,
		Comment:      req.Comment,
		PassengerID:  req.PassengerID,
		JumpDate:     req.JumpDate,
		EquipmentIDs: req.EquipmentIDs,
		CreatedBy:    &actorID,
	}
	id, err := s.repo.Create(ctx, j)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, actorID, id int64, req UpdateJumpRequest) (*Jump, error) {
	if req.LoadID != nil {
		return nil, shared.Invalid("Cannot update load_id directly. Use load assignment endpoints.")
	}

	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.JumpTypeID != nil {
		if _, err := s.types.Get(ctx, *req.JumpTypeID); err != nil {
			return nil, err
		}
		j.JumpTypeID = *req.JumpTypeID
	}
	if req.IsManifested != nil {
		j.IsManifested = *req.IsManifested
	}
	if req.Reserved != nil {
		j.Reserved = *req.Reserved
	}
	if req.Comment != nil {
		j.Comment = req.Comment
	}
	if req.PassengerID != nil {
		j.PassengerID = req.PassengerID
	}
	if req.JumpDate != nil {
		j.JumpDate = req.JumpDate
	}
	replaceEquipment := req.EquipmentIDs != nil
	if replaceEquipment {
		j.EquipmentIDs = *req.EquipmentIDs
	}

	j.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, *j, replaceEquipment); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a jump record. Jumps still on a load, or still carrying
// staff jumps, are refused.
func (s *Service) Delete(ctx context.Context, id int64) error {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.LoadID != nil {
		return shared.Invalid("Cannot delete jump that is assigned to a load. Remove from load first.")
	}
	children, err := s.repo.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return shared.Invalid("Cannot delete jump that has linked staff jumps. Remove from load first.")
	}
	return s.repo.Delete(ctx, id)
}

// AssignToLoad puts a jump on a load together with one staff jump per staff
// requirement of its type. A capacity shortfall does not block the
// assignment; it comes back as a warning for the manifest manager to
// resolve.
func (s *Service) AssignToLoad(ctx context.Context, actorID int64, req AssignRequest) (*AssignResult, error) {
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.LoadLockKey(req.LoadID))
		if err != nil {
			if errors.Is(err, shared.ErrLockBusy) {
				return nil, shared.Invalid("Another assignment for this load is in progress. Try again.")
			}
			return nil, err
		}
		defer release()
	}

	j, err := s.repo.Get(ctx, req.JumpID)
	if err != nil {
		return nil, err
	}
	summary, err := s.loads.GetSummary(ctx, req.LoadID)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.UserOnLoad(ctx, j.UserID, req.LoadID, j.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, shared.Invalid("User already has a jump in this load")
	}

	jt, err := s.types.Get(ctx, j.JumpTypeID)
	if err != nil {
		return nil, err
	}
	owner, err := s.users.Get(ctx, j.UserID)
	if err != nil {
		return nil, err
	}

	required := 1 + len(jt.Staff)
	var warning *string
	if req.Reserved {
		if summary.RemainingReserved < required {
			w := fmt.Sprintf("Load has only %d available reserved spaces but %d are needed",
				summary.RemainingReserved, required)
			warning = &w
		}
	} else if summary.RemainingPublic < required {
		w := fmt.Sprintf("Load has only %d available public spaces but %d are needed",
			summary.RemainingPublic, required)
		warning = &w
	}

	departed := summary.Status == loads.StatusDeparted
	main := *j
	main.LoadID = &req.LoadID
	main.IsManifested = true
	main.Reserved = req.Reserved
	main.UpdatedBy = &actorID
	main.JumpDate = nil
	if departed {
		d := summary.Departure
		main.JumpDate = &d
	}

	staffComment := fmt.Sprintf("Staff for %s %s", owner.FirstName, owner.LastName)
	staff := make([]Jump, 0, len(jt.Staff))
	for _, sr := range jt.Staff {
		staffID := req.StaffAssignments[string(sr.RequiredRole)]
		if staffID == 0 {
			return nil, shared.Invalid(fmt.Sprintf("Staff user_id required for role: %s", sr.RequiredRole))
		}
		if _, err := s.users.Get(ctx, staffID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NotFoundf("Staff user %d not found", staffID)
			}
			return nil, err
		}
		onLoad, err := s.repo.UserOnLoad(ctx, staffID, req.LoadID, 0)
		if err != nil {
			return nil, err
		}
		if onLoad {
			return nil, shared.Invalid(fmt.Sprintf("Staff user %d already has a jump in this load", staffID))
		}

		typeID := j.JumpTypeID
		if sr.DefaultJumpTypeID != nil {
			typeID = *sr.DefaultJumpTypeID
		}
		sj := Jump{
			UserID:       staffID,
			JumpTypeID:   typeID,
			IsManifested: true,
			LoadID:       &req.LoadID,
			Reserved:     req.Reserved,
			Comment:      &staffComment,
			ParentJumpID: &j.ID,
			CreatedBy:    &actorID,
		}
		if departed {
			d := summary.Departure
			sj.JumpDate = &d
		}
		staff = append(staff, sj)
	}

	ids, err := s.repo.AssignToLoad(ctx, main, staff)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveBoardAction("assign")
	s.logger.Info("jump assigned to load",
		slog.Int64("jump_id", j.ID),
		slog.Int64("load_id", req.LoadID),
		slog.Int("staff_jumps", len(staff)),
		slog.Int64("actor_id", actorID))

	return &AssignResult{
		Success:         true,
		Message:         fmt.Sprintf("Jump assigned to load %d", req.LoadID),
		Warning:         warning,
		AssignedJumpIDs: ids,
	}, nil
}

// RemoveFromLoad takes a jump off its load and deletes the staff jumps that
// came with it. The jump stays manifested and returns to the board's
// unassigned pool.
func (s *Service) RemoveFromLoad(ctx context.Context, actorID int64, req RemoveRequest) (*RemoveResult, error) {
	j, err := s.repo.Get(ctx, req.JumpID)
	if err != nil {
		return nil, err
	}
	if j.LoadID == nil {
		return nil, shared.Invalid("Jump is not assigned to any load")
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.LoadLockKey(*j.LoadID))
		if err != nil {
			if errors.Is(err, shared.ErrLockBusy) {
				return nil, shared.Invalid("Another assignment for this load is in progress. Try again.")
			}
			return nil, err
		}
		defer release()
	}

	main := *j
	main.UpdatedBy = &actorID
	childIDs, err := s.repo.RemoveFromLoad(ctx, main)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveBoardAction("remove")
	s.logger.Info("jump removed from load",
		slog.Int64("jump_id", j.ID),
		slog.Int64("load_id", *j.LoadID),
		slog.Int("staff_jumps", len(childIDs)),
		slog.Int64("actor_id", actorID))

	return &RemoveResult{
		Success:        true,
		Message:        "Jump removed from load",
		RemovedJumpIDs: append([]int64{j.ID}, childIDs...),
	}, nil
}
