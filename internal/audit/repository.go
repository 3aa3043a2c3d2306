package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort is the storage contract for the audit trail.
type RepositoryPort interface {
	List(ctx context.Context, req ListRequest) ([]Entry, error)
}

// Repository reads audit_logs via pgx.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Actors may be deleted later, hence the LEFT JOIN and the empty-name
// fallback.
const entryColumns = `a.id, a.actor_id, COALESCE(NULLIF(TRIM(u.display_name), ''), TRIM(u.first_name || ' ' || u.last_name), '') AS actor_name, a.action, a.entity, a.entity_id, a.meta, a.occurred_at`

const entryJoin = `FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id`

func (r *Repository) List(ctx context.Context, req ListRequest) ([]Entry, error) {
	conditions := []string{}
	args := []any{}
	argPos := 1

	if req.ActorID > 0 {
		conditions = append(conditions, fmt.Sprintf("a.actor_id = $%d", argPos))
		args = append(args, req.ActorID)
		argPos++
	}
	if req.Entity != "" {
		conditions = append(conditions, fmt.Sprintf("a.entity = $%d", argPos))
		args = append(args, req.Entity)
		argPos++
	}
	if req.EntityID != "" {
		conditions = append(conditions, fmt.Sprintf("a.entity_id = $%d", argPos))
		args = append(args, req.EntityID)
		argPos++
	}
	if req.Action != "" {
		conditions = append(conditions, fmt.Sprintf("a.action = $%d", argPos))
		args = append(args, req.Action)
		argPos++
	}
	if req.From != nil {
		conditions = append(conditions, fmt.Sprintf("a.occurred_at >= $%d", argPos))
		args = append(args, *req.From)
		argPos++
	}
	if req.To != nil {
		conditions = append(conditions, fmt.Sprintf("a.occurred_at <= $%d", argPos))
		args = append(args, *req.To)
		argPos++
	}

	query := `SELECT ` + entryColumns + ` ` + entryJoin
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY a.occurred_at DESC, a.id DESC"

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e    Entry
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.Entity, &e.EntityID, &meta, &e.At); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, fmt.Errorf("decode audit meta: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
