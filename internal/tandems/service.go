package tandems

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

// Service implements tandem slot and booking business logic.
type Service struct {
	repo        RepositoryPort
	idempotency *shared.IdempotencyStore
	audit       *shared.AuditLogger
	logger      *slog.Logger
}

func NewService(repo RepositoryPort, idempotency *shared.IdempotencyStore, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		idempotency: idempotency,
		audit:       audit,
		logger:      logger,
	}
}

// Availability lists per-day capacity for the public booking calendar.
func (s *Service) Availability(ctx context.Context, start, end time.Time) ([]Availability, error) {
	if end.Before(start) {
		return nil, shared.Invalid("end_date must not be before start_date")
	}
	return s.repo.Availability(ctx, start, end)
}

func (s *Service) CreateSlot(ctx context.Context, actorID int64, req CreateSlotRequest) (*Slot, error) {
	day, err := parseDay(req.SlotDate, "slot_date")
	if err != nil {
		return nil, err
	}
	slot := Slot{SlotDate: day, TotalSlots: req.TotalSlots, CreatedBy: &actorID}
	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}
	return s.repo.GetSlot(ctx, day)
}

func (s *Service) UpdateSlot(ctx context.Context, actorID int64, rawDate string, req UpdateSlotRequest) (*Slot, error) {
	day, err := parseDay(rawDate, "slot_date")
	if err != nil {
		return nil, err
	}
	slot, err := s.repo.GetSlot(ctx, day)
	if err != nil {
		return nil, err
	}
	if req.TotalSlots != nil {
		slot.TotalSlots = *req.TotalSlots
	}
	slot.UpdatedBy = &actorID
	if err := s.repo.UpdateSlot(ctx, *slot); err != nil {
		return nil, err
	}
	return s.repo.GetSlot(ctx, day)
}

// Get returns one booking. Manifest approval resolves tandem passengers
// through it.
func (s *Service) Get(ctx context.Context, id int64) (*Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// MyBookings returns the caller's bookings, newest date first.
func (s *Service) MyBookings(ctx context.Context, userID int64, limit, offset int) ([]Booking, error) {
	return s.repo.ListBookingsByUser(ctx, userID, limit, offset)
}

// List is the admin view over all bookings; with a date it narrows to that
// day's confirmed bookings.
func (s *Service) List(ctx context.Context, day *time.Time, limit, offset int) ([]Booking, error) {
	return s.repo.ListBookings(ctx, day, limit, offset)
}

// Book reserves a seat when the day still has capacity. Requests carrying
// an Idempotency-Key are processed at most once.
func (s *Service) Book(ctx context.Context, userID int64, idemKey string, req CreateBookingRequest) (*Booking, error) {
	day, err := parseDay(req.BookingDate, "booking_date")
	if err != nil {
		return nil, err
	}
	free, err := s.hasCapacity(ctx, day)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, shared.Invalid("No available slots for this date")
	}

	insertedKey := false
	if s.idempotency != nil && idemKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "tandems"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, shared.Invalid("This booking was already submitted")
			}
			return nil, err
		}
		insertedKey = true
	}

	id, err := s.repo.CreateBooking(ctx, Booking{
		UserID:      userID,
		BookingDate: day,
		Status:      BookingConfirmed,
		CreatedBy:   &userID,
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Release(ctx, idemKey, "tandems")
		}
		return nil, err
	}

	s.recordAudit(ctx, userID, "tandem.book", id, map[string]any{"booking_date": req.BookingDate})
	s.logger.Info("tandem booked",
		slog.Int64("booking_id", id),
		slog.Int64("user_id", userID),
		slog.String("date", req.BookingDate))
	return s.repo.GetBooking(ctx, id)
}

// Update changes a booking's date or status. Owners manage their own
// bookings, admins manage all. A date change re-checks capacity.
func (s *Service) Update(ctx context.Context, actor *authz.Subject, id int64, req UpdateBookingRequest) (*Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != actor.ID && !authz.IsAdmin(actor) {
		return nil, shared.ErrForbidden
	}

	if req.BookingDate != nil {
		day, err := parseDay(*req.BookingDate, "booking_date")
		if err != nil {
			return nil, err
		}
		if !day.Equal(b.BookingDate) {
			free, err := s.hasCapacity(ctx, day)
			if err != nil {
				return nil, err
			}
			if !free {
				return nil, shared.Invalid("No available slots for the new date")
			}
			b.BookingDate = day
		}
	}
	if req.Status != nil {
		status, err := ParseBookingStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		b.Status = status
	}

	b.UpdatedBy = &actor.ID
	if err := s.repo.UpdateBooking(ctx, *b); err != nil {
		return nil, err
	}
	return s.repo.GetBooking(ctx, id)
}

// Cancel flips the booking to cancelled, freeing its slot. The row stays
// for the booking history.
func (s *Service) Cancel(ctx context.Context, actor *authz.Subject, id int64) error {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if b.UserID != actor.ID && !authz.IsAdmin(actor) {
		return shared.ErrForbidden
	}
	b.Status = BookingCancelled
	b.UpdatedBy = &actor.ID
	if err := s.repo.UpdateBooking(ctx, *b); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "tandem.cancel", id, nil)
	return nil
}

func (s *Service) hasCapacity(ctx context.Context, day time.Time) (bool, error) {
	slot, err := s.repo.GetSlot(ctx, day)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	booked, err := s.repo.CountConfirmed(ctx, day)
	if err != nil {
		return false, err
	}
	return slot.TotalSlots > booked, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, bookingID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "tandem_booking",
		EntityID: strconv.FormatInt(bookingID, 10),
		Meta:     meta,
	})
}
