package manifests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropzone-hq/dropzone/internal/platform/db"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

// RepositoryPort abstracts manifest persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Manifest, error)
	List(ctx context.Context, req ListManifestsRequest) ([]Manifest, error)
	Create(ctx context.Context, m Manifest) (int64, error)
	Update(ctx context.Context, m Manifest, replaceEquipment bool) error
	Decide(ctx context.Context, id int64, status Status, reason *string, actorID int64) error
	Delete(ctx context.Context, id int64) error
}

// Repository is the pgx implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const manifestColumns = `m.id, m.user_id, m.jump_type_id, m.status, m.decline_reason, m.tandem_booking_id,
	COALESCE(NULLIF(TRIM(u.display_name), ''), TRIM(u.first_name || ' ' || u.last_name)),
	jt.name,
	m.created_at, m.updated_at, m.created_by, m.updated_by`

const manifestJoin = `FROM manifests m
	JOIN users u ON u.id = m.user_id
	JOIN jump_types jt ON jt.id = m.jump_type_id`

func scanManifest(row pgx.Row) (*Manifest, error) {
	var m Manifest
	err := row.Scan(&m.ID, &m.UserID, &m.JumpTypeID, &m.Status, &m.DeclineReason, &m.TandemBookingID,
		&m.UserName, &m.JumpTypeName,
		&m.CreatedAt, &m.UpdatedAt, &m.CreatedBy, &m.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan manifest: %w", err)
	}
	return &m, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Manifest, error) {
	query := `SELECT ` + manifestColumns + ` ` + manifestJoin + ` WHERE m.id = $1`
	m, err := scanManifest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachEquipment(ctx, []*Manifest{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Repository) List(ctx context.Context, req ListManifestsRequest) ([]Manifest, error) {
	where := []string{}
	args := []any{}

	if req.UserID > 0 {
		args = append(args, req.UserID)
		where = append(where, fmt.Sprintf("m.user_id = $%d", len(args)))
	}
	if req.Status != nil {
		args = append(args, string(*req.Status))
		where = append(where, fmt.Sprintf("m.status = $%d", len(args)))
	}

	query := `SELECT ` + manifestColumns + ` ` + manifestJoin
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	// Members read their history newest first; reviewers work the queue
	// oldest first.
	switch {
	case req.UserID > 0:
		query += ` ORDER BY m.created_at DESC`
	case req.Status != nil:
		query += ` ORDER BY m.created_at ASC`
	default:
		query += ` ORDER BY m.id`
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, req.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	items, err := collectManifests(rows)
	if err != nil {
		return nil, err
	}

	ptrs := make([]*Manifest, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}
	if err := r.attachEquipment(ctx, ptrs); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) Create(ctx context.Context, m Manifest) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO manifests (user_id, jump_type_id, status, tandem_booking_id, created_by)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			m.UserID, m.JumpTypeID, string(m.Status), m.TandemBookingID, m.CreatedBy,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert manifest: %w", err)
		}
		return insertManifestEquipment(ctx, tx, id, m.EquipmentIDs)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, m Manifest, replaceEquipment bool) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE manifests
			SET jump_type_id = $2, updated_at = now(), updated_by = $3
			WHERE id = $1`,
			m.ID, m.JumpTypeID, m.UpdatedBy)
		if err != nil {
			return fmt.Errorf("update manifest: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}

		if replaceEquipment {
			if _, err := tx.Exec(ctx, `DELETE FROM manifest_equipment WHERE manifest_id = $1`, m.ID); err != nil {
				return fmt.Errorf("clear manifest equipment: %w", err)
			}
			return insertManifestEquipment(ctx, tx, m.ID, m.EquipmentIDs)
		}
		return nil
	})
}

// Decide flips a pending manifest to its final status. The status guard in
// the WHERE clause makes concurrent decisions race-safe.
func (r *Repository) Decide(ctx context.Context, id int64, status Status, reason *string, actorID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE manifests
		SET status = $2, decline_reason = $3, updated_at = now(), updated_by = $4
		WHERE id = $1 AND status = 'pending'`,
		id, string(status), reason, actorID)
	if err != nil {
		return fmt.Errorf("decide manifest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM manifest_equipment WHERE manifest_id = $1`, id); err != nil {
			return fmt.Errorf("clear manifest equipment: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM manifests WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete manifest: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func collectManifests(rows pgx.Rows) ([]Manifest, error) {
	defer rows.Close()
	var items []Manifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

func (r *Repository) attachEquipment(ctx context.Context, items []*Manifest) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[int64]*Manifest, len(items))
	ids := make([]int64, 0, len(items))
	for _, m := range items {
		m.EquipmentIDs = []int64{}
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT manifest_id, equipment_id FROM manifest_equipment WHERE manifest_id = ANY($1) ORDER BY equipment_id`, ids)
	if err != nil {
		return fmt.Errorf("load manifest equipment: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var manifestID, equipmentID int64
		if err := rows.Scan(&manifestID, &equipmentID); err != nil {
			return fmt.Errorf("scan manifest equipment: %w", err)
		}
		if m, ok := byID[manifestID]; ok {
			m.EquipmentIDs = append(m.EquipmentIDs, equipmentID)
		}
	}
	return rows.Err()
}

func insertManifestEquipment(ctx context.Context, tx pgx.Tx, manifestID int64, equipmentIDs []int64) error {
	for _, eqID := range equipmentIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO manifest_equipment (manifest_id, equipment_id)
			VALUES ($1, $2)`, manifestID, eqID); err != nil {
			return fmt.Errorf("insert manifest equipment: %w", err)
		}
	}
	return nil
}
