package loads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropzone-hq/dropzone/internal/platform/db"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

// RepositoryPort abstracts load persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Load, error)
	GetSummary(ctx context.Context, id int64) (*Summary, error)
	List(ctx context.Context, req ListLoadsRequest) ([]Summary, error)
	Create(ctx context.Context, l Load) (int64, error)
	Update(ctx context.Context, l Load) error
	UpdateStatus(ctx context.Context, id int64, status Status, updatedBy *int64) error
	Delete(ctx context.Context, id int64) error
	CountJumps(ctx context.Context, loadID int64) (int, error)
	Sweep(ctx context.Context, now time.Time) ([]Transition, error)
}

// Repository is the pgx implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const loadColumns = `l.id, l.aircraft_id, a.name, l.departure, l.status, l.max_load, l.reserved_spaces,
	l.created_at, l.updated_at, l.created_by, l.updated_by`

const loadJoin = `FROM loads l JOIN aircraft a ON a.id = l.aircraft_id`

func scanLoad(row pgx.Row) (*Load, error) {
	var l Load
	err := row.Scan(&l.ID, &l.AircraftID, &l.AircraftName, &l.Departure, &l.Status,
		&l.MaxLoad, &l.ReservedSpaces,
		&l.CreatedAt, &l.UpdatedAt, &l.CreatedBy, &l.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan load: %w", err)
	}
	return &l, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Load, error) {
	query := `SELECT ` + loadColumns + ` ` + loadJoin + ` WHERE l.id = $1`
	return scanLoad(r.pool.QueryRow(ctx, query, id))
}

// summaryColumns extends loadColumns with occupancy counts and the load's
// position among the day's takeoffs. The day index is independent of any
// listing filter.
const summaryColumns = loadColumns + `,
	COALESCE(o.occupied_public, 0), COALESCE(o.occupied_reserved, 0),
	(SELECT COUNT(*) FROM loads d
	 WHERE d.departure::date = l.departure::date
	   AND (d.departure < l.departure OR (d.departure = l.departure AND d.id <= l.id)))`

const summaryJoin = loadJoin + `
	LEFT JOIN (
		SELECT load_id,
		       COUNT(*) FILTER (WHERE NOT reserved) AS occupied_public,
		       COUNT(*) FILTER (WHERE reserved) AS occupied_reserved
		FROM jumps
		WHERE is_manifested AND load_id IS NOT NULL
		GROUP BY load_id
	) o ON o.load_id = l.id`

func scanSummary(row pgx.Row) (*Summary, error) {
	var s Summary
	var occupiedPublic, occupiedReserved int
	err := row.Scan(&s.ID, &s.AircraftID, &s.AircraftName, &s.Departure, &s.Status,
		&s.MaxLoad, &s.Load.ReservedSpaces,
		&s.CreatedAt, &s.UpdatedAt, &s.CreatedBy, &s.UpdatedBy,
		&occupiedPublic, &occupiedReserved, &s.IndexNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan load summary: %w", err)
	}
	s.Spaces = ComputeSpaces(s.MaxLoad, s.Load.ReservedSpaces, occupiedPublic, occupiedReserved)
	return &s, nil
}

func (r *Repository) GetSummary(ctx context.Context, id int64) (*Summary, error) {
	query := `SELECT ` + summaryColumns + ` ` + summaryJoin + ` WHERE l.id = $1`
	return scanSummary(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) List(ctx context.Context, req ListLoadsRequest) ([]Summary, error) {
	conditions := []string{}
	args := []any{}
	argPos := 1

	if req.From != nil {
		conditions = append(conditions, fmt.Sprintf("l.departure >= $%d", argPos))
		args = append(args, *req.From)
		argPos++
	}
	if req.To != nil {
		conditions = append(conditions, fmt.Sprintf("l.departure <= $%d", argPos))
		args = append(args, *req.To)
		argPos++
	}
	if req.HideOld {
		conditions = append(conditions, fmt.Sprintf("l.departure >= $%d", argPos))
		args = append(args, startOfDay(time.Now()))
		argPos++
	}
	if len(req.AircraftIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("l.aircraft_id = ANY($%d)", argPos))
		args = append(args, req.AircraftIDs)
		argPos++
	}
	if len(req.Statuses) > 0 {
		statuses := make([]string, len(req.Statuses))
		for i, s := range req.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("l.status = ANY($%d)", argPos))
		args = append(args, statuses)
		argPos++
	}

	query := `SELECT ` + summaryColumns + ` ` + summaryJoin
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY l.departure, l.id"

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list loads: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *Repository) Create(ctx context.Context, l Load) (int64, error) {
	query := `
		INSERT INTO loads (aircraft_id, departure, status, max_load, reserved_spaces, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		l.AircraftID, l.Departure, string(l.Status), l.MaxLoad, l.ReservedSpaces, l.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert load: %w", err)
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, l Load) error {
	query := `
		UPDATE loads
		SET aircraft_id = $2, departure = $3, max_load = $4, reserved_spaces = $5,
		    updated_at = now(), updated_by = $6
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		l.ID, l.AircraftID, l.Departure, l.MaxLoad, l.ReservedSpaces, l.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update load: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status, updatedBy *int64) error {
	query := `
		UPDATE loads
		SET status = $2, updated_at = now(), updated_by = $3
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, string(status), updatedBy)
	if err != nil {
		return fmt.Errorf("update load status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM loads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete load: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) CountJumps(ctx context.Context, loadID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jumps WHERE load_id = $1`, loadID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count load jumps: %w", err)
	}
	return n, nil
}

// Sweep advances load statuses in one transaction: forming loads within
// five minutes of departure go on call, and anything past departure is
// marked departed. Loads already past departure skip on_call entirely.
func (r *Repository) Sweep(ctx context.Context, now time.Time) ([]Transition, error) {
	var transitions []Transition
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		departed, err := collectIDs(tx.Query(ctx, `
			UPDATE loads SET status = $1, updated_at = now()
			WHERE status <> $1 AND departure <= $2
			RETURNING id`, string(StatusDeparted), now))
		if err != nil {
			return fmt.Errorf("sweep departed: %w", err)
		}
		for _, id := range departed {
			transitions = append(transitions, Transition{LoadID: id, To: StatusDeparted})
		}

		onCall, err := collectIDs(tx.Query(ctx, `
			UPDATE loads SET status = $1, updated_at = now()
			WHERE status = $2 AND departure > $3 AND departure <= $4
			RETURNING id`,
			string(StatusOnCall), string(StatusForming), now, now.Add(5*time.Minute)))
		if err != nil {
			return fmt.Errorf("sweep on_call: %w", err)
		}
		for _, id := range onCall {
			transitions = append(transitions, Transition{LoadID: id, To: StatusOnCall})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transitions, nil
}

func collectIDs(rows pgx.Rows, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
