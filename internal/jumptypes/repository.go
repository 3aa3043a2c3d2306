package jumptypes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/platform/db"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

// RepositoryPort abstracts jump type persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*JumpType, error)
	List(ctx context.Context, req ListJumpTypesRequest) ([]JumpType, error)
	Create(ctx context.Context, jt JumpType) (int64, error)
	Update(ctx context.Context, jt JumpType, replaceRoles, replaceStaff bool) error
	SoftDelete(ctx context.Context, id, deletedBy int64) error
}

// Repository is the pgx implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const jumpTypeColumns = `id, name, short_name, description, exit_altitude, price, is_available,
	created_at, updated_at, deleted_at, created_by, updated_by, deleted_by`

func scanJumpType(row pgx.Row) (*JumpType, error) {
	var jt JumpType
	err := row.Scan(&jt.ID, &jt.Name, &jt.ShortName, &jt.Description, &jt.ExitAltitude,
		&jt.Price, &jt.IsAvailable,
		&jt.CreatedAt, &jt.UpdatedAt, &jt.DeletedAt,
		&jt.CreatedBy, &jt.UpdatedBy, &jt.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan jump type: %w", err)
	}
	return &jt, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*JumpType, error) {
	query := `SELECT ` + jumpTypeColumns + ` FROM jump_types WHERE id = $1 AND deleted_at IS NULL`
	jt, err := scanJumpType(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachRelations(ctx, []*JumpType{jt}); err != nil {
		return nil, err
	}
	return jt, nil
}

func (r *Repository) List(ctx context.Context, req ListJumpTypesRequest) ([]JumpType, error) {
	conditions := []string{"deleted_at IS NULL"}
	args := []any{}
	argPos := 1

	if req.Search != "" {
		conditions = append(conditions,
			fmt.Sprintf("(name ILIKE $%d OR short_name ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}
	if req.IsAvailable != nil {
		conditions = append(conditions, fmt.Sprintf("is_available = $%d", argPos))
		args = append(args, *req.IsAvailable)
		argPos++
	}
	if req.AllowedRole != "" {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jump_type_allowed_roles ar WHERE ar.jump_type_id = jump_types.id AND ar.role = $%d)", argPos))
		args = append(args, string(req.AllowedRole))
		argPos++
	}

	query := `SELECT ` + jumpTypeColumns + ` FROM jump_types WHERE ` +
		strings.Join(conditions, " AND ") + " ORDER BY id"

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jump types: %w", err)
	}
	defer rows.Close()

	var out []JumpType
	var refs []*JumpType
	for rows.Next() {
		jt, err := scanJumpType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *jt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		refs = append(refs, &out[i])
	}
	if err := r.attachRelations(ctx, refs); err != nil {
		return nil, err
	}
	return out, nil
}

// attachRelations loads allowed roles and staff requirements for a batch of
// jump types in two queries.
func (r *Repository) attachRelations(ctx context.Context, items []*JumpType) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[int64]*JumpType, len(items))
	ids := make([]int64, 0, len(items))
	for _, jt := range items {
		jt.AllowedRoles = []authz.Role{}
		jt.Staff = []StaffRequirement{}
		byID[jt.ID] = jt
		ids = append(ids, jt.ID)
	}

	roleRows, err := r.pool.Query(ctx,
		`SELECT jump_type_id, role FROM jump_type_allowed_roles WHERE jump_type_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("load allowed roles: %w", err)
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var jumpTypeID int64
		var role string
		if err := roleRows.Scan(&jumpTypeID, &role); err != nil {
			return fmt.Errorf("scan allowed role: %w", err)
		}
		if jt, ok := byID[jumpTypeID]; ok {
			jt.AllowedRoles = append(jt.AllowedRoles, authz.Role(role))
		}
	}
	if err := roleRows.Err(); err != nil {
		return err
	}

	staffRows, err := r.pool.Query(ctx,
		`SELECT id, jump_type_id, staff_required_role, staff_default_jump_type_id
		 FROM additional_staff WHERE jump_type_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("load staff requirements: %w", err)
	}
	defer staffRows.Close()
	for staffRows.Next() {
		var jumpTypeID int64
		var sr StaffRequirement
		var role string
		if err := staffRows.Scan(&sr.ID, &jumpTypeID, &role, &sr.DefaultJumpTypeID); err != nil {
			return fmt.Errorf("scan staff requirement: %w", err)
		}
		sr.RequiredRole = authz.Role(role)
		if jt, ok := byID[jumpTypeID]; ok {
			jt.Staff = append(jt.Staff, sr)
		}
	}
	return staffRows.Err()
}

func (r *Repository) Create(ctx context.Context, jt JumpType) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO jump_types (name, short_name, description, exit_altitude, price, is_available, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			jt.Name, jt.ShortName, jt.Description, jt.ExitAltitude, jt.Price, jt.IsAvailable, jt.CreatedBy,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert jump type: %w", err)
		}
		return insertRelations(ctx, tx, id, jt, jt.CreatedBy)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, jt JumpType, replaceRoles, replaceStaff bool) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE jump_types
			SET name = $2, short_name = $3, description = $4, exit_altitude = $5,
			    price = $6, is_available = $7, updated_at = now(), updated_by = $8
			WHERE id = $1 AND deleted_at IS NULL`,
			jt.ID, jt.Name, jt.ShortName, jt.Description, jt.ExitAltitude,
			jt.Price, jt.IsAvailable, jt.UpdatedBy)
		if err != nil {
			return fmt.Errorf("update jump type: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}

		if replaceRoles {
			if _, err := tx.Exec(ctx,
				`DELETE FROM jump_type_allowed_roles WHERE jump_type_id = $1`, jt.ID); err != nil {
				return fmt.Errorf("clear allowed roles: %w", err)
			}
		}
		if replaceStaff {
			if _, err := tx.Exec(ctx,
				`DELETE FROM additional_staff WHERE jump_type_id = $1`, jt.ID); err != nil {
				return fmt.Errorf("clear staff requirements: %w", err)
			}
		}
		if replaceRoles || replaceStaff {
			filtered := jt
			if !replaceRoles {
				filtered.AllowedRoles = nil
			}
			if !replaceStaff {
				filtered.Staff = nil
			}
			return insertRelations(ctx, tx, jt.ID, filtered, jt.UpdatedBy)
		}
		return nil
	})
}

func insertRelations(ctx context.Context, tx pgx.Tx, id int64, jt JumpType, actor *int64) error {
	for _, role := range jt.AllowedRoles {
		if _, err := tx.Exec(ctx, `
			INSERT INTO jump_type_allowed_roles (jump_type_id, role, created_by)
			VALUES ($1, $2, $3)`, id, string(role), actor); err != nil {
			return fmt.Errorf("insert allowed role: %w", err)
		}
	}
	for _, sr := range jt.Staff {
		if _, err := tx.Exec(ctx, `
			INSERT INTO additional_staff (jump_type_id, staff_required_role, staff_default_jump_type_id, created_by)
			VALUES ($1, $2, $3, $4)`, id, string(sr.RequiredRole), sr.DefaultJumpTypeID, actor); err != nil {
			return fmt.Errorf("insert staff requirement: %w", err)
		}
	}
	return nil
}

func (r *Repository) SoftDelete(ctx context.Context, id, deletedBy int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jump_types
		SET deleted_at = now(), deleted_by = $2
		WHERE id = $1 AND deleted_at IS NULL`, id, deletedBy)
	if err != nil {
		return fmt.Errorf("delete jump type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
