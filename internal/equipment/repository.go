package equipment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

// RepositoryPort abstracts equipment persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Equipment, error)
	GetBySerial(ctx context.Context, serial string) (*Equipment, error)
	List(ctx context.Context, req ListEquipmentRequest) ([]Equipment, error)
	Create(ctx context.Context, e Equipment) (int64, error)
	Update(ctx context.Context, e Equipment) error
	Delete(ctx context.Context, id int64) error
}

// Repository is the pgx implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const equipmentColumns = `e.id, e.type_id, e.name_id, e.status_id, e.serial_number,
	tv.value, nv.value, sv.value,
	e.created_at, e.updated_at, e.created_by, e.updated_by`

const equipmentJoin = `FROM equipment e
	JOIN dictionary_values tv ON tv.id = e.type_id
	JOIN dictionary_values nv ON nv.id = e.name_id
	JOIN dictionary_values sv ON sv.id = e.status_id`

func scanEquipment(row pgx.Row) (*Equipment, error) {
	var e Equipment
	err := row.Scan(&e.ID, &e.TypeID, &e.NameID, &e.StatusID, &e.SerialNumber,
		&e.TypeValue, &e.NameValue, &e.StatusValue,
		&e.CreatedAt, &e.UpdatedAt, &e.CreatedBy, &e.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan equipment: %w", err)
	}
	return &e, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Equipment, error) {
	query := `SELECT ` + equipmentColumns + ` ` + equipmentJoin + ` WHERE e.id = $1`
	return scanEquipment(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) GetBySerial(ctx context.Context, serial string) (*Equipment, error) {
	query := `SELECT ` + equipmentColumns + ` ` + equipmentJoin + ` WHERE e.serial_number = $1`
	return scanEquipment(r.pool.QueryRow(ctx, query, serial))
}

func (r *Repository) List(ctx context.Context, req ListEquipmentRequest) ([]Equipment, error) {
	conditions := []string{}
	args := []any{}
	argPos := 1

	if req.TypeID > 0 {
		conditions = append(conditions, fmt.Sprintf("e.type_id = $%d", argPos))
		args = append(args, req.TypeID)
		argPos++
	}
	if req.StatusID > 0 {
		conditions = append(conditions, fmt.Sprintf("e.status_id = $%d", argPos))
		args = append(args, req.StatusID)
		argPos++
	}

	query := `SELECT ` + equipmentColumns + ` ` + equipmentJoin
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY e.id"

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	defer rows.Close()

	var out []Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *Repository) Create(ctx context.Context, e Equipment) (int64, error) {
	query := `
		INSERT INTO equipment (type_id, name_id, status_id, serial_number, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		e.TypeID, e.NameID, e.StatusID, e.SerialNumber, e.CreatedBy).Scan(&id)
	if err != nil {
		return 0, translateSerialConflict(err)
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, e Equipment) error {
	query := `
		UPDATE equipment
		SET type_id = $2, name_id = $3, status_id = $4, serial_number = $5,
		    updated_at = now(), updated_by = $6
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		e.ID, e.TypeID, e.NameID, e.StatusID, e.SerialNumber, e.UpdatedBy)
	if err != nil {
		return translateSerialConflict(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM equipment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete equipment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// translateSerialConflict maps the unique serial constraint to a user error.
func translateSerialConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.Invalid("Equipment with this serial number already exists")
	}
	return fmt.Errorf("write equipment: %w", err)
}
