package tandems

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/shared"
	_ "github.com/dropzone-hq/dropzone/testing"
)

type memoryRepo struct {
	slots       map[string]Slot
	nextBooking int64
	bookings    map[int64]Booking
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{slots: map[string]Slot{}, nextBooking: 1, bookings: map[int64]Booking{}}
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

func (m *memoryRepo) GetSlot(_ context.Context, day time.Time) (*Slot, error) {
	s, ok := m.slots[dayKey(day)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (m *memoryRepo) CreateSlot(_ context.Context, s Slot) error {
	if _, ok := m.slots[dayKey(s.SlotDate)]; ok {
		return shared.Invalid("Slot for this date already exists")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	m.slots[dayKey(s.SlotDate)] = s
	return nil
}

func (m *memoryRepo) UpdateSlot(_ context.Context, s Slot) error {
	cur, ok := m.slots[dayKey(s.SlotDate)]
	if !ok {
		return shared.ErrNotFound
	}
	s.CreatedAt = cur.CreatedAt
	m.slots[dayKey(s.SlotDate)] = s
	return nil
}

func (m *memoryRepo) Availability(ctx context.Context, start, end time.Time) ([]Availability, error) {
	out := []Availability{}
	for _, s := range m.slots {
		if s.SlotDate.Before(start) || s.SlotDate.After(end) {
			continue
		}
		booked, err := m.CountConfirmed(ctx, s.SlotDate)
		if err != nil {
			return nil, err
		}
		out = append(out, Availability{
			SlotDate:       s.SlotDate,
			TotalSlots:     s.TotalSlots,
			BookedSlots:    booked,
			AvailableSlots: s.TotalSlots - booked,
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].SlotDate.Before(out[k].SlotDate) })
	return out, nil
}

func (m *memoryRepo) CountConfirmed(_ context.Context, day time.Time) (int, error) {
	n := 0
	for _, b := range m.bookings {
		if dayKey(b.BookingDate) == dayKey(day) && b.Status == BookingConfirmed {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) GetBooking(_ context.Context, id int64) (*Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &b, nil
}

func (m *memoryRepo) CreateBooking(_ context.Context, b Booking) (int64, error) {
	b.ID = m.nextBooking
	m.nextBooking++
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	m.bookings[b.ID] = b
	return b.ID, nil
}

func (m *memoryRepo) UpdateBooking(_ context.Context, b Booking) error {
	cur, ok := m.bookings[b.ID]
	if !ok {
		return shared.ErrNotFound
	}
	b.CreatedAt = cur.CreatedAt
	m.bookings[b.ID] = b
	return nil
}

func (m *memoryRepo) ListBookingsByUser(_ context.Context, userID int64, _, _ int) ([]Booking, error) {
	out := []Booking{}
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].BookingDate.After(out[k].BookingDate) })
	return out, nil
}

func (m *memoryRepo) ListBookings(_ context.Context, day *time.Time, _, _ int) ([]Booking, error) {
	out := []Booking{}
	for _, b := range m.bookings {
		if day != nil && (dayKey(b.BookingDate) != dayKey(*day) || b.Status != BookingConfirmed) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func newTestService(repo *memoryRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, nil, nil, logger)
}

func addSlot(t *testing.T, svc *Service, date string, total int) {
	t.Helper()
	_, err := svc.CreateSlot(context.Background(), 9, CreateSlotRequest{SlotDate: date, TotalSlots: total})
	require.NoError(t, err)
}

func TestBookConsumesCapacity(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	addSlot(t, svc, "2025-07-01", 2)

	first, err := svc.Book(context.Background(), 1, "", CreateBookingRequest{BookingDate: "2025-07-01"})
	require.NoError(t, err)
	require.Equal(t, BookingConfirmed, first.Status)

	_, err = svc.Book(context.Background(), 2, "", CreateBookingRequest{BookingDate: "2025-07-01"})
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), 3, "", CreateBookingRequest{BookingDate: "2025-07-01"})
	require.True(t, shared.IsUserError(err))
	require.EqualError(t, err, "No available slots for this date")

	// Cancelling frees the seat.
	owner := &authz.Subject{ID: 1, Roles: []authz.Role{authz.RoleTandemJumper}}
	require.NoError(t, svc.Cancel(context.Background(), owner, first.ID))

	_, err = svc.Book(context.Background(), 3, "", CreateBookingRequest{BookingDate: "2025-07-01"})
	require.NoError(t, err)
}

func TestBookUnknownDateHasNoCapacity(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Book(context.Background(), 1, "", CreateBookingRequest{BookingDate: "2025-07-01"})
	require.EqualError(t, err, "No available slots for this date")

	_, err = svc.Book(context.Background(), 1, "", CreateBookingRequest{BookingDate: "July 1"})
	require.EqualError(t, err, "booking_date must be YYYY-MM-DD")
}

func TestCreateSlotRejectsDuplicate(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	addSlot(t, svc, "2025-07-01", 4)

	_, err := svc.CreateSlot(context.Background(), 9, CreateSlotRequest{SlotDate: "2025-07-01", TotalSlots: 8})
	require.True(t, shared.IsUserError(err))
	require.EqualError(t, err, "Slot for this date already exists")
}

func TestUpdateSlotResizesCapacity(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	addSlot(t, svc, "2025-07-01", 1)

	three := 3
	slot, err := svc.UpdateSlot(context.Background(), 9, "2025-07-01", UpdateSlotRequest{TotalSlots: &three})
	require.NoError(t, err)
	require.Equal(t, 3, slot.TotalSlots)

	_, err = svc.UpdateSlot(context.Background(), 9, "2025-08-01", UpdateSlotRequest{TotalSlots: &three})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateBookingChecksNewDate(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	addSlot(t, svc, "2025-07-01", 2)
	addSlot(t, svc, "2025-07-02", 1)
	addSlot(t, svc, "2025-07-03", 1)

	b, err := svc.Book(context.Background(), 1, "", CreateBookingRequest{BookingDate: "2025-07-01"})
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), 2, "", CreateBookingRequest{BookingDate: "2025-07-02"})
	require.NoError(t, err)

	owner := &authz.Subject{ID: 1, Roles: []authz.Role{authz.RoleTandemJumper}}
	full := "2025-07-02"
	_, err = svc.Update(context.Background(), owner, b.ID, UpdateBookingRequest{BookingDate: &full})
	require.EqualError(t, err, "No available slots for the new date")

	free := "2025-07-03"
	moved, err := svc.Update(context.Background(), owner, b.ID, UpdateBookingRequest{BookingDate: &free})
	require.NoError(t, err)
	require.Equal(t, "2025-07-03", moved.BookingDate.Format("2006-01-02"))
}

func TestBookingOwnership(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	addSlot(t, svc, "2025-07-01", 4)

	b, err := svc.Book(context.Background(), 1, "", CreateBookingRequest{BookingDate: "2025-07-01"})
	require.NoError(t, err)

	other := &authz.Subject{ID: 2, Roles: []authz.Role{authz.RoleSportPaid}}
	require.ErrorIs(t, svc.Cancel(context.Background(), other, b.ID), shared.ErrForbidden)

	admin := &authz.Subject{ID: 3, Roles: []authz.Role{authz.RoleAdministrator}}
	require.NoError(t, svc.Cancel(context.Background(), admin, b.ID))

	got, err := svc.Get(context.Background(), b.ID)
	require.NoError(t, err)
	require.Equal(t, BookingCancelled, got.Status)
}

func TestAvailabilityWindow(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	addSlot(t, svc, "2025-07-01", 4)
	addSlot(t, svc, "2025-07-02", 2)
	addSlot(t, svc, "2025-07-10", 6)

	b, err := svc.Book(context.Background(), 1, "", CreateBookingRequest{BookingDate: "2025-07-01"})
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), 2, "", CreateBookingRequest{BookingDate: "2025-07-01"})
	require.NoError(t, err)

	// A cancelled booking does not count against the day.
	owner := &authz.Subject{ID: 1, Roles: []authz.Role{authz.RoleTandemJumper}}
	require.NoError(t, svc.Cancel(context.Background(), owner, b.ID))

	start, _ := time.Parse("2006-01-02", "2025-07-01")
	end, _ := time.Parse("2006-01-02", "2025-07-05")
	days, err := svc.Availability(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, days, 2)
	require.Equal(t, "2025-07-01", days[0].SlotDate.Format("2006-01-02"))
	require.Equal(t, 1, days[0].BookedSlots)
	require.Equal(t, 3, days[0].AvailableSlots)
	require.Equal(t, 0, days[1].BookedSlots)

	_, err = svc.Availability(context.Background(), end, start)
	require.True(t, shared.IsUserError(err))
}
