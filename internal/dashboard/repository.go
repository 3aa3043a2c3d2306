// Package dashboard serves the public departures board: today's loads and
// who is on them, stripped down to what a screen in the hangar may show.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropzone-hq/dropzone/internal/loads"
)

// Jump is the public projection of a manifested jump.
type Jump struct {
	JumpID            int64  `json:"jump_id"`
	DisplayName       string `json:"display_name"`
	JumpTypeShortName string `json:"jump_type_short_name"`
	ParentJumpID      *int64 `json:"parent_jump_id,omitempty"`
}

// Load is the public projection of a scheduled load.
type Load struct {
	LoadID               int64        `json:"load_id"`
	AircraftName         string       `json:"aircraft_name"`
	Departure            time.Time    `json:"departure"`
	RemainingPublicSlots int          `json:"remaining_public_slots"`
	Status               loads.Status `json:"status"`
	Jumps                []Jump       `json:"jumps"`
}

// RepositoryPort abstracts the dashboard read model.
type RepositoryPort interface {
	Loads(ctx context.Context, from, to time.Time) ([]Load, error)
}

// Repository is the pgx implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Loads returns the loads departing in the window with their manifested
// jumps attached, earliest departure first.
func (r *Repository) Loads(ctx context.Context, from, to time.Time) ([]Load, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, a.name, l.departure, l.status, l.max_load, l.reserved_spaces,
			COALESCE(SUM(CASE WHEN j.is_manifested AND NOT j.reserved THEN 1 ELSE 0 END), 0)
		FROM loads l
		JOIN aircraft a ON a.id = l.aircraft_id
		LEFT JOIN jumps j ON j.load_id = l.id
		WHERE l.departure BETWEEN $1 AND $2
		GROUP BY l.id, a.name
		ORDER BY l.departure`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list dashboard loads: %w", err)
	}
	defer rows.Close()

	var items []Load
	ids := []int64{}
	for rows.Next() {
		var item Load
		var maxLoad, reserved, occupiedPublic int
		if err := rows.Scan(&item.LoadID, &item.AircraftName, &item.Departure, &item.Status,
			&maxLoad, &reserved, &occupiedPublic); err != nil {
			return nil, fmt.Errorf("scan dashboard load: %w", err)
		}
		item.RemainingPublicSlots = loads.ComputeSpaces(maxLoad, reserved, occupiedPublic, 0).RemainingPublic
		item.Jumps = []Jump{}
		items = append(items, item)
		ids = append(ids, item.LoadID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []Load{}, nil
	}

	if err := r.attachJumps(ctx, items, ids); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) attachJumps(ctx context.Context, items []Load, ids []int64) error {
	byID := make(map[int64]*Load, len(items))
	for i := range items {
		byID[items[i].LoadID] = &items[i]
	}

	rows, err := r.pool.Query(ctx, `
		SELECT j.id, j.load_id,
			COALESCE(NULLIF(TRIM(u.display_name), ''), TRIM(u.first_name || ' ' || u.last_name)),
			jt.short_name, j.parent_jump_id
		FROM jumps j
		JOIN users u ON u.id = j.user_id
		JOIN jump_types jt ON jt.id = j.jump_type_id
		WHERE j.load_id = ANY($1) AND j.is_manifested
		ORDER BY j.load_id, j.id`, ids)
	if err != nil {
		return fmt.Errorf("list dashboard jumps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var j Jump
		var loadID int64
		if err := rows.Scan(&j.JumpID, &loadID, &j.DisplayName, &j.JumpTypeShortName, &j.ParentJumpID); err != nil {
			return fmt.Errorf("scan dashboard jump: %w", err)
		}
		if item, ok := byID[loadID]; ok {
			item.Jumps = append(item.Jumps, j)
		}
	}
	return rows.Err()
}
