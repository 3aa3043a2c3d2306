// Package audit reads the audit trail back out for administrators. The
// write side lives in shared.AuditLogger; this package only lists and
// exports what services already recorded.
package audit

import "time"

// Entry is one audit_logs row with the actor resolved to a display name.
type Entry struct {
	ID        int64          `json:"id"`
	ActorID   int64          `json:"actor_id"`
	ActorName string         `json:"actor_name"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entity_id"`
	Meta      map[string]any `json:"meta,omitempty"`
	At        time.Time      `json:"at"`
}

// ListRequest filters the trail. Zero values mean no filter.
type ListRequest struct {
	ActorID  int64
	Entity   string
	EntityID string
	Action   string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}
