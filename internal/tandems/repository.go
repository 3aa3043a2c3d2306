package tandems

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

// RepositoryPort abstracts tandem persistence.
type RepositoryPort interface {
	GetSlot(ctx context.Context, day time.Time) (*Slot, error)
	CreateSlot(ctx context.Context, s Slot) error
	UpdateSlot(ctx context.Context, s Slot) error
	Availability(ctx context.Context, start, end time.Time) ([]Availability, error)
	CountConfirmed(ctx context.Context, day time.Time) (int, error)
	GetBooking(ctx context.Context, id int64) (*Booking, error)
	CreateBooking(ctx context.Context, b Booking) (int64, error)
	UpdateBooking(ctx context.Context, b Booking) error
	ListBookingsByUser(ctx context.Context, userID int64, limit, offset int) ([]Booking, error)
	ListBookings(ctx context.Context, day *time.Time, limit, offset int) ([]Booking, error)
}

// Repository is the pgx implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const slotColumns = `s.slot_date, s.total_slots, s.created_at, s.updated_at, s.created_by, s.updated_by`

func (r *Repository) GetSlot(ctx context.Context, day time.Time) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM tandem_slots s WHERE s.slot_date = $1`, day)
	var s Slot
	err := row.Scan(&s.SlotDate, &s.TotalSlots, &s.CreatedAt, &s.UpdatedAt, &s.CreatedBy, &s.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("get tandem slot: %w", err)
	}
	return &s, nil
}

func (r *Repository) CreateSlot(ctx context.Context, s Slot) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO tandem_slots (slot_date, total_slots, created_by)
VALUES ($1, $2, $3)`, s.SlotDate, s.TotalSlots, s.CreatedBy)
	if err != nil {
		return translateSlotConflict(err)
	}
	return nil
}

func (r *Repository) UpdateSlot(ctx context.Context, s Slot) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tandem_slots
SET total_slots = $2, updated_at = NOW(), updated_by = $3
WHERE slot_date = $1`, s.SlotDate, s.TotalSlots, s.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update tandem slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Availability counts confirmed bookings against each slot in the range.
// Days without a slot row are not bookable and do not appear.
func (r *Repository) Availability(ctx context.Context, start, end time.Time) ([]Availability, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.slot_date, s.total_slots, COUNT(b.id)
FROM tandem_slots s
LEFT JOIN tandem_bookings b ON b.booking_date = s.slot_date AND b.status = 'confirmed'
WHERE s.slot_date BETWEEN $1 AND $2
GROUP BY s.slot_date, s.total_slots
ORDER BY s.slot_date`, start, end)
	if err != nil {
		return nil, fmt.Errorf("tandem availability: %w", err)
	}
	defer rows.Close()

	out := []Availability{}
	for rows.Next() {
		var a Availability
		if err := rows.Scan(&a.SlotDate, &a.TotalSlots, &a.BookedSlots); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		a.AvailableSlots = a.TotalSlots - a.BookedSlots
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) CountConfirmed(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tandem_bookings
WHERE booking_date = $1 AND status = 'confirmed'`, day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return n, nil
}

const bookingColumns = `b.id, b.user_id,
	COALESCE(NULLIF(TRIM(u.display_name), ''), TRIM(u.first_name || ' ' || u.last_name)),
	b.booking_date, b.status, b.created_at, b.updated_at, b.created_by, b.updated_by`

const bookingJoin = `FROM tandem_bookings b
	JOIN users u ON u.id = b.user_id`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.UserID, &b.UserName, &b.BookingDate, &b.Status,
		&b.CreatedAt, &b.UpdatedAt, &b.CreatedBy, &b.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	return &b, nil
}

func (r *Repository) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` `+bookingJoin+` WHERE b.id = $1`, id)
	return scanBooking(row)
}

func (r *Repository) CreateBooking(ctx context.Context, b Booking) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO tandem_bookings (user_id, booking_date, status, created_by)
VALUES ($1, $2, $3, $4)
RETURNING id`, b.UserID, b.BookingDate, b.Status, b.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create booking: %w", err)
	}
	return id, nil
}

func (r *Repository) UpdateBooking(ctx context.Context, b Booking) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tandem_bookings
SET booking_date = $2, status = $3, updated_at = NOW(), updated_by = $4
WHERE id = $1`, b.ID, b.BookingDate, b.Status, b.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) ListBookingsByUser(ctx context.Context, userID int64, limit, offset int) ([]Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+` `+bookingJoin+`
WHERE b.user_id = $1
ORDER BY b.booking_date DESC, b.id DESC
LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return collectBookings(rows)
}

// ListBookings is the admin listing. With a date it narrows to that day's
// confirmed bookings, the set the tandem desk works from.
func (r *Repository) ListBookings(ctx context.Context, day *time.Time, limit, offset int) ([]Booking, error) {
	if day != nil {
		rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+` `+bookingJoin+`
WHERE b.booking_date = $1 AND b.status = 'confirmed'
ORDER BY b.id`, *day)
		if err != nil {
			return nil, fmt.Errorf("list bookings: %w", err)
		}
		return collectBookings(rows)
	}

	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+` `+bookingJoin+`
ORDER BY b.booking_date DESC, b.id DESC
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()
	out := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func translateSlotConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.Invalid("Slot for this date already exists")
	}
	return fmt.Errorf("create tandem slot: %w", err)
}
