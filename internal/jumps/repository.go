package jumps

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

// RepositoryPort abstracts jump persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Jump, error)
	List(ctx context.Context, req ListJumpsRequest) ([]Jump, error)
	ListByLoad(ctx context.Context, loadID int64) ([]Jump, error)
	Logbook(ctx context.Context, userID int64, req LogbookRequest) ([]Jump, error)
	Stats(ctx context.Context, userID int64, from, to *time.Time) (*Stats, error)
	Create(ctx context.Context, j Jump) (int64, error)
	Update(ctx context.Context, j Jump, replaceEquipment bool) error
	Delete(ctx context.Context, id int64) error
	CountChildren(ctx context.Context, parentID int64) (int, error)
	UserOnLoad(ctx context.Context, userID, loadID, excludeJumpID int64) (bool, error)
	AssignToLoad(ctx context.Context, main Jump, staff []Jump) ([]int64, error)
	RemoveFromLoad(ctx context.Context, main Jump) ([]int64, error)
}

// Repository is the pgx implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const jumpColumns = `j.id, j.user_id, j.jump_type_id, j.is_manifested, j.load_id, j.reserved,
	j.comment, j.parent_jump_id, j.passenger_id, j.jump_date,
	COALESCE(NULLIF(TRIM(u.display_name), ''), TRIM(u.first_name || ' ' || u.last_name)),
	jt.name, jt.short_name, a.name,
	j.created_at, j.updated_at, j.created_by, j.updated_by`

const jumpJoin = `FROM jumps j
	JOIN users u ON u.id = j.user_id
	JOIN jump_types jt ON jt.id = j.jump_type_id
	LEFT JOIN loads l ON l.id = j.load_id
	LEFT JOIN aircraft a ON a.id = l.aircraft_id`

func scanJump(row pgx.Row) (*Jump, error) {
	var j Jump
	err := row.Scan(&j.ID, &j.UserID, &j.JumpTypeID, &j.IsManifested, &j.LoadID, &j.Reserved,
		&j.Comment, &j.ParentJumpID, &j.PassengerID, &j.JumpDate,
		&j.UserName, &j.JumpTypeName, &j.JumpTypeShort, &j.AircraftName,
		&j.CreatedAt, &j.UpdatedAt, &j.CreatedBy, &j.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("scan jump: %w", err)
	}
	return &j, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Jump, error) {
	query := `SELECT ` + jumpColumns + ` ` + jumpJoin + ` WHERE j.id = $1`
	j, err := scanJump(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachEquipment(ctx, []*Jump{j}); err != nil {
		return nil, err
	}
	return j, nil
}

func (r *Repository) List(ctx context.Context, req ListJumpsRequest) ([]Jump, error) {
	conditions := []string{}
	args := []any{}
	argPos := 1

	if req.UserID > 0 {
		conditions = append(conditions, fmt.Sprintf("j.user_id = $%d", argPos))
		args = append(args, req.UserID)
		argPos++
	}
	if req.JumpTypeID > 0 {
		conditions = append(conditions, fmt.Sprintf("j.jump_type_id = $%d", argPos))
		args = append(args, req.JumpTypeID)
		argPos++
	}
	if req.LoadID > 0 {
		conditions = append(conditions, fmt.Sprintf("j.load_id = $%d", argPos))
		args = append(args, req.LoadID)
		argPos++
	}
	if req.ParentJumpID > 0 {
		conditions = append(conditions, fmt.Sprintf("j.parent_jump_id = $%d", argPos))
		args = append(args, req.ParentJumpID)
		argPos++
	}
	if req.IsManifested != nil {
		conditions = append(conditions, fmt.Sprintf("j.is_manifested = $%d", argPos))
		args = append(args, *req.IsManifested)
		argPos++
	}
	if req.HasParent != nil {
		if *req.HasParent {
			conditions = append(conditions, "j.parent_jump_id IS NOT NULL")
		} else {
			conditions = append(conditions, "j.parent_jump_id IS NULL")
		}
	}
	if req.HasLoad != nil {
		if *req.HasLoad {
			conditions = append(conditions, "j.load_id IS NOT NULL")
		} else {
			conditions = append(conditions, "j.load_id IS NULL")
		}
	}

	query := `SELECT ` + jumpColumns + ` ` + jumpJoin
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY j.id"

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, req.Offset)

	return r.queryJumps(ctx, query, args...)
}

func (r *Repository) ListByLoad(ctx context.Context, loadID int64) ([]Jump, error) {
	query := `SELECT ` + jumpColumns + ` ` + jumpJoin + ` WHERE j.load_id = $1 ORDER BY j.created_at, j.id`
	return r.queryJumps(ctx, query, loadID)
}

func (r *Repository) Logbook(ctx context.Context, userID int64, req LogbookRequest) ([]Jump, error) {
	conditions := []string{"j.user_id = $1", "j.is_manifested", "j.jump_date IS NOT NULL"}
	args := []any{userID}
	argPos := 2

	if req.From != nil {
		conditions = append(conditions, fmt.Sprintf("j.jump_date >= $%d", argPos))
		args = append(args, *req.From)
		argPos++
	}
	if req.To != nil {
		conditions = append(conditions, fmt.Sprintf("j.jump_date <= $%d", argPos))
		args = append(args, *req.To)
		argPos++
	}
	if len(req.JumpTypeIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("j.jump_type_id = ANY($%d)", argPos))
		args = append(args, req.JumpTypeIDs)
		argPos++
	}
	if len(req.AircraftIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("l.aircraft_id = ANY($%d)", argPos))
		args = append(args, req.AircraftIDs)
		argPos++
	}

	query := `SELECT ` + jumpColumns + ` ` + jumpJoin + ` WHERE ` +
		strings.Join(conditions, " AND ") +
		" ORDER BY j.jump_date DESC, j.created_at DESC"

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, req.Offset)

	return r.queryJumps(ctx, query, args...)
}

func (r *Repository) Stats(ctx context.Context, userID int64, from, to *time.Time) (*Stats, error) {
	conditions := []string{"j.user_id = $1", "j.is_manifested", "j.jump_date IS NOT NULL"}
	args := []any{userID}
	argPos := 2

	if from != nil {
		conditions = append(conditions, fmt.Sprintf("j.jump_date >= $%d", argPos))
		args = append(args, *from)
		argPos++
	}
	if to != nil {
		conditions = append(conditions, fmt.Sprintf("j.jump_date <= $%d", argPos))
		args = append(args, *to)
		argPos++
	}

	query := `SELECT jt.name, COUNT(*)
		FROM jumps j
		JOIN jump_types jt ON jt.id = j.jump_type_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		GROUP BY jt.name
		ORDER BY jt.name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("jump stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{ByType: map[string]int{}}
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan jump stats: %w", err)
		}
		stats.ByType[name] = count
		stats.TotalJumps += count
	}
	return stats, rows.Err()
}

func (r *Repository) Create(ctx context.Context, j Jump) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO jumps (user_id, jump_type_id, is_manifested, load_id, reserved,
				comment, parent_jump_id, passenger_id, jump_date, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			j.UserID, j.JumpTypeID, j.IsManifested, j.LoadID, j.Reserved,
			j.Comment, j.ParentJumpID, j.PassengerID, j.JumpDate, j.CreatedBy,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert jump: %w", err)
		}
		return insertEquipment(ctx, tx, id, j.EquipmentIDs)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, j Jump, replaceEquipment bool) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE jumps
			SET jump_type_id = $2, is_manifested = $3, reserved = $4, comment = $5,
			    passenger_id = $6, jump_date = $7, updated_at = now(), updated_by = $8
			WHERE id = $1`,
			j.ID, j.JumpTypeID, j.IsManifested, j.Reserved, j.Comment,
			j.PassengerID, j.JumpDate, j.UpdatedBy)
		if err != nil {
			return fmt.Errorf("update jump: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}

		if replaceEquipment {
			if _, err := tx.Exec(ctx, `DELETE FROM jump_equipment WHERE jump_id = $1`, j.ID); err != nil {
				return fmt.Errorf("clear jump equipment: %w", err)
			}
			return insertEquipment(ctx, tx, j.ID, j.EquipmentIDs)
		}
		return nil
	})
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM jump_equipment WHERE jump_id = $1`, id); err != nil {
			return fmt.Errorf("clear jump equipment: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM jumps WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete jump: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (r *Repository) CountChildren(ctx context.Context, parentID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jumps WHERE parent_jump_id = $1`, parentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count staff jumps: %w", err)
	}
	return n, nil
}

func (r *Repository) UserOnLoad(ctx context.Context, userID, loadID, excludeJumpID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jumps WHERE user_id = $1 AND load_id = $2 AND id <> $3)`,
		userID, loadID, excludeJumpID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user on load: %w", err)
	}
	return exists, nil
}

// AssignToLoad writes the main jump's new placement and its staff jumps in
// one transaction. COALESCE keeps an earlier jump_date when the load has
// not departed yet.
func (r *Repository) AssignToLoad(ctx context.Context, main Jump, staff []Jump) ([]int64, error) {
	ids := []int64{main.ID}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE jumps
			SET load_id = $2, is_manifested = TRUE, reserved = $3,
			    jump_date = COALESCE($4, jump_date), updated_at = now(), updated_by = $5
			WHERE id = $1`,
			main.ID, main.LoadID, main.Reserved, main.JumpDate, main.UpdatedBy)
		if err != nil {
			return fmt.Errorf("assign jump: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}

		for _, sj := range staff {
			var id int64
			err := tx.QueryRow(ctx, `
				INSERT INTO jumps (user_id, jump_type_id, is_manifested, load_id, reserved,
					comment, parent_jump_id, jump_date, created_by)
				VALUES ($1, $2, TRUE, $3, $4, $5, $6, $7, $8)
				RETURNING id`,
				sj.UserID, sj.JumpTypeID, sj.LoadID, sj.Reserved,
				sj.Comment, sj.ParentJumpID, sj.JumpDate, sj.CreatedBy,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("insert staff jump: %w", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// RemoveFromLoad deletes the staff jumps hanging off main and detaches main
// itself, all in one transaction. Returns the deleted staff jump ids.
func (r *Repository) RemoveFromLoad(ctx context.Context, main Jump) ([]int64, error) {
	var childIDs []int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id FROM jumps WHERE parent_jump_id = $1 ORDER BY id`, main.ID)
		if err != nil {
			return fmt.Errorf("list staff jumps: %w", err)
		}
		childIDs, err = collectIDs(rows)
		if err != nil {
			return err
		}

		if len(childIDs) > 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM jump_equipment WHERE jump_id = ANY($1)`, childIDs); err != nil {
				return fmt.Errorf("clear staff jump equipment: %w", err)
			}
			if _, err := tx.Exec(ctx, `DELETE FROM jumps WHERE parent_jump_id = $1`, main.ID); err != nil {
				return fmt.Errorf("delete staff jumps: %w", err)
			}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE jumps
			SET load_id = NULL, jump_date = NULL, reserved = FALSE,
			    updated_at = now(), updated_by = $2
			WHERE id = $1`,
			main.ID, main.UpdatedBy)
		if err != nil {
			return fmt.Errorf("detach jump: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return childIDs, nil
}

func (r *Repository) queryJumps(ctx context.Context, query string, args ...any) ([]Jump, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jumps: %w", err)
	}
	defer rows.Close()

	var out []Jump
	for rows.Next() {
		j, err := scanJump(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*Jump, 0, len(out))
	for i := range out {
		refs = append(refs, &out[i])
	}
	if err := r.attachEquipment(ctx, refs); err != nil {
		return nil, err
	}
	return out, nil
}

// attachEquipment loads equipment links for a batch of jumps in one query.
func (r *Repository) attachEquipment(ctx context.Context, items []*Jump) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[int64]*Jump, len(items))
	ids := make([]int64, 0, len(items))
	for _, j := range items {
		j.EquipmentIDs = []int64{}
		byID[j.ID] = j
		ids = append(ids, j.ID)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT jump_id, equipment_id FROM jump_equipment WHERE jump_id = ANY($1) ORDER BY equipment_id`, ids)
	if err != nil {
		return fmt.Errorf("load jump equipment: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var jumpID, equipmentID int64
		if err := rows.Scan(&jumpID, &equipmentID); err != nil {
			return fmt.Errorf("scan jump equipment: %w", err)
		}
		if j, ok := byID[jumpID]; ok {
			j.EquipmentIDs = append(j.EquipmentIDs, equipmentID)
		}
	}
	return rows.Err()
}

func insertEquipment(ctx context.Context, tx pgx.Tx, jumpID int64, equipmentIDs []int64) error {
	for _, eqID := range equipmentIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO jump_equipment (jump_id, equipment_id)
			VALUES ($1, $2)`, jumpID, eqID); err != nil {
			return fmt.Errorf("insert jump equipment: %w", err)
		}
	}
	return nil
}

func collectIDs(rows pgx.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
