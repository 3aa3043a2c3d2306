package audit

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/dropzone-hq/dropzone/testing"
)

type memoryRepo struct {
	entries []Entry
	lastReq ListRequest
}

func (m *memoryRepo) List(_ context.Context, req ListRequest) ([]Entry, error) {
	m.lastReq = req
	out := []Entry{}
	for _, e := range m.entries {
		if req.ActorID > 0 && e.ActorID != req.ActorID {
			continue
		}
		if req.Entity != "" && e.Entity != req.Entity {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestListAppliesFilters(t *testing.T) {
	repo := &memoryRepo{entries: []Entry{
		{ID: 1, ActorID: 2, Entity: "users", EntityID: "7", Action: "ROLES_REPLACE"},
		{ID: 2, ActorID: 3, Entity: "loads", EntityID: "4", Action: "DELETE"},
	}}
	svc := newTestService(repo)

	entries, err := svc.List(context.Background(), ListRequest{Entity: "loads"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(2), entries[0].ID)
}

func TestExportCSVRendersEntries(t *testing.T) {
	at := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	repo := &memoryRepo{entries: []Entry{
		{
			ID:        1,
			ActorID:   2,
			ActorName: "Dana Ops",
			Action:    "ROLES_REPLACE",
			Entity:    "users",
			EntityID:  "7",
			Meta:      map[string]any{"roles": "sport_paid"},
			At:        at,
		},
	}}
	svc := newTestService(repo)

	data, err := svc.ExportCSV(context.Background(), ListRequest{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "at,actor_id,actor_name,action,entity,entity_id,meta", lines[0])
	require.Equal(t, `2025-06-14T09:30:00Z,2,Dana Ops,ROLES_REPLACE,users,7,"{""roles"":""sport_paid""}"`, lines[1])
}

func TestExportCSVCapsLimit(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestService(repo)

	_, err := svc.ExportCSV(context.Background(), ListRequest{Limit: 50000})
	require.NoError(t, err)
	require.Equal(t, exportLimit, repo.lastReq.Limit)

	_, err = svc.ExportCSV(context.Background(), ListRequest{})
	require.NoError(t, err)
	require.Equal(t, exportLimit, repo.lastReq.Limit)
}
