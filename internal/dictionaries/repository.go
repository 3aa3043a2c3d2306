package dictionaries

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

// RepositoryPort defines data access methods for dictionaries.
type RepositoryPort interface {
	List(ctx context.Context) ([]Dictionary, error)
	Get(ctx context.Context, id int64) (*Dictionary, error)
	GetByName(ctx context.Context, name string) (*Dictionary, error)
	Create(ctx context.Context, name string) (int64, error)
	Update(ctx context.Context, d Dictionary) error
	Delete(ctx context.Context, id int64) error

	ListValues(ctx context.Context, dictionaryID int64, activeOnly bool) ([]Value, error)
	GetValue(ctx context.Context, id int64) (*Value, error)
	CreateValue(ctx context.Context, dictionaryID int64, value string) (int64, error)
	UpdateValue(ctx context.Context, v Value) error
	DeleteValue(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context) ([]Dictionary, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, is_active, created_at, updated_at FROM dictionaries ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Dictionary
	for rows.Next() {
		var d Dictionary
		if err := rows.Scan(&d.ID, &d.Name, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (*Dictionary, error) {
	return scanDictionary(r.pool.QueryRow(ctx, `SELECT id, name, is_active, created_at, updated_at FROM dictionaries WHERE id = $1`, id))
}

func (r *Repository) GetByName(ctx context.Context, name string) (*Dictionary, error) {
	return scanDictionary(r.pool.QueryRow(ctx, `SELECT id, name, is_active, created_at, updated_at FROM dictionaries WHERE lower(name) = lower($1)`, name))
}

func (r *Repository) Create(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO dictionaries (name, is_active, created_at, updated_at) VALUES ($1, TRUE, NOW(), NOW()) RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, translateUnique(err, "A dictionary with this name already exists.")
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, d Dictionary) error {
	tag, err := r.pool.Exec(ctx, `UPDATE dictionaries SET name = $2, is_active = $3, updated_at = NOW() WHERE id = $1`, d.ID, d.Name, d.IsActive)
	if err != nil {
		return translateUnique(err, "A dictionary with this name already exists.")
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM dictionaries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) ListValues(ctx context.Context, dictionaryID int64, activeOnly bool) ([]Value, error) {
	query := `SELECT id, dictionary_id, value, is_system, is_active, created_at, updated_at
		FROM dictionary_values WHERE dictionary_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY value`

	rows, err := r.pool.Query(ctx, query, dictionaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Value
	for rows.Next() {
		var v Value
		if err := rows.Scan(&v.ID, &v.DictionaryID, &v.Value, &v.IsSystem, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repository) GetValue(ctx context.Context, id int64) (*Value, error) {
	var v Value
	err := r.pool.QueryRow(ctx, `SELECT id, dictionary_id, value, is_system, is_active, created_at, updated_at FROM dictionary_values WHERE id = $1`, id).
		Scan(&v.ID, &v.DictionaryID, &v.Value, &v.IsSystem, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *Repository) CreateValue(ctx context.Context, dictionaryID int64, value string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO dictionary_values (dictionary_id, value, is_system, is_active, created_at, updated_at)
		VALUES ($1, $2, FALSE, TRUE, NOW(), NOW()) RETURNING id`, dictionaryID, value).Scan(&id)
	if err != nil {
		return 0, translateUnique(err, "This value already exists in the dictionary.")
	}
	return id, nil
}

func (r *Repository) UpdateValue(ctx context.Context, v Value) error {
	tag, err := r.pool.Exec(ctx, `UPDATE dictionary_values SET value = $2, is_active = $3, updated_at = NOW() WHERE id = $1`, v.ID, v.Value, v.IsActive)
	if err != nil {
		return translateUnique(err, "This value already exists in the dictionary.")
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteValue(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM dictionary_values WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanDictionary(row pgx.Row) (*Dictionary, error) {
	var d Dictionary
	err := row.Scan(&d.ID, &d.Name, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func translateUnique(err error, message string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.Invalid(message)
	}
	return err
}
