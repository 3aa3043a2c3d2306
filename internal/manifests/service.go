package manifests

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/jumps"
	"github.com/dropzone-hq/dropzone/internal/jumptypes"
	"github.com/dropzone-hq/dropzone/internal/loads"
	"github.com/dropzone-hq/dropzone/internal/observability"
	"github.com/dropzone-hq/dropzone/internal/shared"
	"github.com/dropzone-hq/dropzone/internal/tandems"
)

// JumpTypeDirectory resolves jump types for manifest validation.
// *jumptypes.Service satisfies it.
type JumpTypeDirectory interface {
	Get(ctx context.Context, id int64) (*jumptypes.JumpType, error)
}

// BookingDirectory resolves tandem bookings to the passenger who booked.
// *tandems.Service satisfies it.
type BookingDirectory interface {
	Get(ctx context.Context, id int64) (*tandems.Booking, error)
}

// LoadDirectory supplies loads for approval targets and the board.
// *loads.Service satisfies it.
type LoadDirectory interface {
	Get(ctx context.Context, id int64) (*loads.Load, error)
	List(ctx context.Context, req loads.ListLoadsRequest) ([]loads.Summary, error)
}

// JumpBoard creates and lists jumps on behalf of the manifest flow.
// *jumps.Repository satisfies it.
type JumpBoard interface {
	Create(ctx context.Context, j jumps.Jump) (int64, error)
	ListByLoad(ctx context.Context, loadID int64) ([]jumps.Jump, error)
	List(ctx context.Context, req jumps.ListJumpsRequest) ([]jumps.Jump, error)
}

const approvalModule = "manifests"

// Service handles manifest business logic and assembles the board.
type Service struct {
	repo        RepositoryPort
	types       JumpTypeDirectory
	bookings    BookingDirectory
	loads       LoadDirectory
	jumps       JumpBoard
	approvals   *shared.ApprovalRecorder
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewService(repo RepositoryPort, types JumpTypeDirectory, bookings BookingDirectory,
	loadDir LoadDirectory, board JumpBoard, approvals *shared.ApprovalRecorder,
	idempotency *shared.IdempotencyStore, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		repo:        repo,
		types:       types,
		bookings:    bookings,
		loads:       loadDir,
		jumps:       board,
		approvals:   approvals,
		idempotency: idempotency,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Get returns one manifest. Members see their own, admins see all.
func (s *Service) Get(ctx context.Context, viewer *authz.Subject, id int64) (*Manifest, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != viewer.ID && !authz.IsAdmin(viewer) {
		return nil, shared.ErrForbidden
	}
	return m, nil
}

// My returns the caller's manifests, newest first.
func (s *Service) My(ctx context.Context, userID int64, limit, offset int) ([]Manifest, error) {
	return s.repo.List(ctx, ListManifestsRequest{UserID: userID, Limit: limit, Offset: offset})
}

// List is the reviewer view over all manifests.
func (s *Service) List(ctx context.Context, req ListManifestsRequest) ([]Manifest, error) {
	return s.repo.List(ctx, req)
}

// Pending returns the review queue, oldest submission first.
func (s *Service) Pending(ctx context.Context, limit, offset int) ([]Manifest, error) {
	status := StatusPending
	return s.repo.List(ctx, ListManifestsRequest{Status: &status, Limit: limit, Offset: offset})
}

// History returns the review trail for one manifest: the submission and
// every decision, oldest step first.
func (s *Service) History(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.approvals.List(ctx, approvalModule, id)
}

// Create submits a manifest for the caller. The jump type must be
// available and open to one of the caller's roles; admins may sign up for
// anything. Requests carrying an Idempotency-Key are processed at most
// once.
func (s *Service) Create(ctx context.Context, subject *authz.Subject, idemKey string, req CreateManifestRequest) (*Manifest, error) {
	jt, err := s.types.Get(ctx, req.JumpTypeID)
	if err != nil {
		return nil, err
	}
	if !jt.IsAvailable {
		return nil, shared.Invalid("This jump type is not available")
	}
	if !authz.IsAdmin(subject) && !jt.AllowedFor(subject) {
		return nil, shared.Invalid("This jump type is not allowed for your roles")
	}
	if req.TandemBookingID != nil {
		b, err := s.bookings.Get(ctx, *req.TandemBookingID)
		if err != nil {
			return nil, err
		}
		if b.Status != tandems.BookingConfirmed {
			return nil, shared.Invalid("Tandem booking is cancelled")
		}
	}

	insertedKey := false
	if s.idempotency != nil && idemKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, approvalModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, shared.Invalid("This manifest was already submitted")
			}
			return nil, err
		}
		insertedKey = true
	}

	id, err := s.repo.Create(ctx, Manifest{
		UserID:          subject.ID,
		JumpTypeID:      req.JumpTypeID,
		Status:          StatusPending,
		TandemBookingID: req.TandemBookingID,
		EquipmentIDs:    req.EquipmentIDs,
		CreatedBy:       &subject.ID,
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Release(ctx, idemKey, approvalModule)
		}
		return nil, err
	}

	if s.approvals != nil {
		_ = s.approvals.EnsureSubmit(ctx, approvalModule, id, subject.ID, "")
	}
	s.logger.Info("manifest submitted",
		slog.Int64("manifest_id", id),
		slog.Int64("user_id", subject.ID),
		slog.Int64("jump_type_id", req.JumpTypeID))
	return s.repo.Get(ctx, id)
}

// Update changes a pending manifest. Owners edit their own, admins edit
// any manifest in any status.
func (s *Service) Update(ctx context.Context, actor *authz.Subject, id int64, req UpdateManifestRequest) (*Manifest, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != actor.ID && !authz.IsAdmin(actor) {
		return nil, shared.ErrForbidden
	}
	if m.Status != StatusPending && !authz.IsAdmin(actor) {
		return nil, shared.Invalid("Can only update pending manifests")
	}

	if req.JumpTypeID != nil {
		jt, err := s.types.Get(ctx, *req.JumpTypeID)
		if err != nil {
			return nil, err
		}
		if !jt.IsAvailable {
			return nil, shared.Invalid("This jump type is not available")
		}
		m.JumpTypeID = *req.JumpTypeID
	}
	replaceEquipment := req.EquipmentIDs != nil
	if replaceEquipment {
		m.EquipmentIDs = *req.EquipmentIDs
	}
	m.UpdatedBy = &actor.ID

	if err := s.repo.Update(ctx, *m, replaceEquipment); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a pending manifest. Owners delete their own, admins any.
func (s *Service) Delete(ctx context.Context, actor *authz.Subject, id int64) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.UserID != actor.ID && !authz.IsAdmin(actor) {
		return shared.ErrForbidden
	}
	if m.Status != StatusPending && !authz.IsAdmin(actor) {
		return shared.Invalid("Can only delete pending manifests")
	}
	return s.repo.Delete(ctx, id)
}

// Approve turns a pending manifest into a jump. The jump copies the
// manifest's equipment and, for tandem manifests, the passenger; with a
// load id it goes straight onto that load, otherwise it waits in the
// unassigned pool. The jump is created before the status flips so a
// failure leaves the manifest pending and retryable.
func (s *Service) Approve(ctx context.Context, actorID, id int64, req ApproveRequest) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.Status != StatusPending {
		return shared.Invalid("Can only approve pending manifests")
	}

	j := jumps.Jump{
		UserID:       m.UserID,
		JumpTypeID:   m.JumpTypeID,
		IsManifested: true,
		LoadID:       req.LoadID,
		EquipmentIDs: m.EquipmentIDs,
		CreatedBy:    &actorID,
	}
	if req.LoadID != nil {
		load, err := s.loads.Get(ctx, *req.LoadID)
		if err != nil {
			return err
		}
		if load.Status == loads.StatusDeparted {
			j.JumpDate = &load.Departure
		}
	}
	if m.TandemBookingID != nil {
		b, err := s.bookings.Get(ctx, *m.TandemBookingID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if b != nil {
			j.PassengerID = &b.UserID
		}
	}

	jumpID, err := s.jumps.Create(ctx, j)
	if err != nil {
		return err
	}
	if err := s.repo.Decide(ctx, id, StatusApproved, nil, actorID); err != nil {
		return err
	}

	s.recordDecision(ctx, id, actorID, shared.ApprovalApprove, "")
	s.metrics.ObserveManifestDecision("approved")
	s.logger.Info("manifest approved",
		slog.Int64("manifest_id", id),
		slog.Int64("jump_id", jumpID),
		slog.Int64("actor_id", actorID))
	return nil
}

// Decline refuses a pending manifest and stores the reason.
func (s *Service) Decline(ctx context.Context, actorID, id int64, req DeclineRequest) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.Status != StatusPending {
		return shared.Invalid("Can only decline pending manifests")
	}

	if err := s.repo.Decide(ctx, id, StatusDeclined, &req.Reason, actorID); err != nil {
		return err
	}

	s.recordDecision(ctx, id, actorID, shared.ApprovalReject, req.Reason)
	s.metrics.ObserveManifestDecision("declined")
	s.logger.Info("manifest declined",
		slog.Int64("manifest_id", id),
		slog.Int64("actor_id", actorID))
	return nil
}

// recordDecision appends to the approval trail. Record logs its own
// failures.
func (s *Service) recordDecision(ctx context.Context, refID, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	_ = s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  approvalModule,
		RefID:   refID,
		ActorID: actorID,
		Action:  action,
		Note:    note,
	})
}
