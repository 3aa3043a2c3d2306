package aircraft

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

// RepositoryPort abstracts aircraft persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Aircraft, error)
	List(ctx context.Context, req ListAircraftRequest) ([]Aircraft, error)
	Create(ctx context.Context, a Aircraft) (int64, error)
	Update(ctx context.Context, a Aircraft) error
	SoftDelete(ctx context.Context, id, deletedBy int64) error
}

// Repository is the pgx implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const aircraftColumns = `id, name, type, max_load, created_at, updated_at, deleted_at, created_by, updated_by, deleted_by`

func scanAircraft(row pgx.Row) (*Aircraft, error) {
	var a Aircraft
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.MaxLoad,
		&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
		&a.CreatedBy, &a.UpdatedBy, &a.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan aircraft: %w", err)
	}
	return &a, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Aircraft, error) {
	query := `SELECT ` + aircraftColumns + ` FROM aircraft WHERE id = $1 AND deleted_at IS NULL`
	return scanAircraft(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) List(ctx context.Context, req ListAircraftRequest) ([]Aircraft, error) {
	conditions := []string{}
	args := []any{}
	argPos := 1

	if !req.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}
	if req.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argPos))
		args = append(args, string(req.Type))
		argPos++
	}

	query := `SELECT ` + aircraftColumns + ` FROM aircraft`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list aircraft: %w", err)
	}
	defer rows.Close()

	var out []Aircraft
	for rows.Next() {
		a, err := scanAircraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *Repository) Create(ctx context.Context, a Aircraft) (int64, error) {
	query := `
		INSERT INTO aircraft (name, type, max_load, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query, a.Name, string(a.Type), a.MaxLoad, a.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert aircraft: %w", err)
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, a Aircraft) error {
	query := `
		UPDATE aircraft
		SET name = $2, type = $3, max_load = $4, updated_at = now(), updated_by = $5
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, a.ID, a.Name, string(a.Type), a.MaxLoad, a.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update aircraft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) SoftDelete(ctx context.Context, id, deletedBy int64) error {
	query := `
		UPDATE aircraft
		SET deleted_at = now(), deleted_by = $2
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, id, deletedBy)
	if err != nil {
		return fmt.Errorf("delete aircraft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
