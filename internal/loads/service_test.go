package loads

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropzone-hq/dropzone/internal/aircraft"
	"github.com/dropzone-hq/dropzone/internal/observability"
	"github.com/dropzone-hq/dropzone/internal/shared"
	_ "github.com/dropzone-hq/dropzone/testing"
)

type memoryRepo struct {
	nextID    int64
	items     map[int64]Load
	jumpCount map[int64]int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, items: map[int64]Load{}, jumpCount: map[int64]int{}}
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Load, error) {
	l, ok := m.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &l, nil
}

func (m *memoryRepo) GetSummary(ctx context.Context, id int64) (*Summary, error) {
	l, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Load:        *l,
		IndexNumber: 1,
		Spaces:      ComputeSpaces(l.MaxLoad, l.ReservedSpaces, 0, 0),
	}, nil
}

func (m *memoryRepo) List(ctx context.Context, req ListLoadsRequest) ([]Summary, error) {
	out := []Summary{}
	for id := range m.items {
		s, err := m.GetSummary(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) Create(_ context.Context, l Load) (int64, error) {
	l.ID = m.nextID
	l.CreatedAt = time.Now()
	m.items[l.ID] = l
	m.nextID++
	return l.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, l Load) error {
	existing, ok := m.items[l.ID]
	if !ok {
		return shared.ErrNotFound
	}
	l.Status = existing.Status
	l.CreatedAt = existing.CreatedAt
	m.items[l.ID] = l
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id int64, status Status, _ *int64) error {
	l, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	l.Status = status
	m.items[id] = l
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memoryRepo) CountJumps(_ context.Context, loadID int64) (int, error) {
	return m.jumpCount[loadID], nil
}

func (m *memoryRepo) Sweep(_ context.Context, now time.Time) ([]Transition, error) {
	var transitions []Transition
	ids := make([]int64, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		l := m.items[id]
		switch {
		case l.Status != StatusDeparted && !l.Departure.After(now):
			l.Status = StatusDeparted
			m.items[id] = l
			transitions = append(transitions, Transition{LoadID: id, To: StatusDeparted})
		case l.Status == StatusForming && l.Departure.After(now) && !l.Departure.After(now.Add(5*time.Minute)):
			l.Status = StatusOnCall
			m.items[id] = l
			transitions = append(transitions, Transition{LoadID: id, To: StatusOnCall})
		}
	}
	return transitions, nil
}

type stubFleet struct {
	planes map[int64]aircraft.Aircraft
}

func (s stubFleet) Get(_ context.Context, id int64) (*aircraft.Aircraft, error) {
	p, ok := s.planes[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

func newTestService(repo *memoryRepo) *Service {
	fleet := stubFleet{planes: map[int64]aircraft.Aircraft{
		1: {ID: 1, Name: "L-410", Type: aircraft.TypePlane, MaxLoad: 16},
		2: {ID: 2, Name: "Cessna 182", Type: aircraft.TypePlane, MaxLoad: 4},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, fleet, logger, observability.NewMetrics())
}

func TestCreateDefaultsCapacityFromAircraft(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	s, err := svc.Create(context.Background(), 1, CreateLoadRequest{
		AircraftID: 1,
		Departure:  time.Now().Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, 16, s.MaxLoad)
	require.Equal(t, StatusForming, s.Status)
	require.Equal(t, 16, s.RemainingPublic)
}

func TestCreateRejectsOversizedReservation(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Create(context.Background(), 1, CreateLoadRequest{
		AircraftID:     2,
		Departure:      time.Now().Add(time.Hour),
		ReservedSpaces: 5,
	})
	require.True(t, shared.IsUserError(err))
}

func TestCreateUnknownAircraft(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Create(context.Background(), 1, CreateLoadRequest{
		AircraftID: 99,
		Departure:  time.Now().Add(time.Hour),
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestManualStatusTransitions(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	s, err := svc.Create(ctx, 1, CreateLoadRequest{AircraftID: 1, Departure: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	onCall, err := svc.ChangeStatus(ctx, 1, s.ID, "on_call")
	require.NoError(t, err)
	require.Equal(t, StatusOnCall, onCall.Status)

	// Backwards is refused.
	_, err = svc.ChangeStatus(ctx, 1, s.ID, "forming")
	require.True(t, shared.IsUserError(err))

	departed, err := svc.ChangeStatus(ctx, 1, s.ID, "departed")
	require.NoError(t, err)
	require.Equal(t, StatusDeparted, departed.Status)

	_, err = svc.ChangeStatus(ctx, 1, s.ID, "on_call")
	require.True(t, shared.IsUserError(err))

	_, err = svc.ChangeStatus(ctx, 1, s.ID, "boarding")
	require.True(t, shared.IsUserError(err))
}

func TestSweepAdvancesStatuses(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	now := time.Now()
	svc.now = func() time.Time { return now }

	soon, err := svc.Create(ctx, 1, CreateLoadRequest{AircraftID: 1, Departure: now.Add(3 * time.Minute)})
	require.NoError(t, err)
	overdue, err := svc.Create(ctx, 1, CreateLoadRequest{AircraftID: 1, Departure: now.Add(-time.Minute)})
	require.NoError(t, err)
	later, err := svc.Create(ctx, 1, CreateLoadRequest{AircraftID: 1, Departure: now.Add(time.Hour)})
	require.NoError(t, err)

	transitions, err := svc.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, transitions, 2)

	byID := map[int64]Status{}
	for _, tr := range transitions {
		byID[tr.LoadID] = tr.To
	}
	require.Equal(t, StatusOnCall, byID[soon.ID])
	require.Equal(t, StatusDeparted, byID[overdue.ID])

	untouched, err := svc.Get(ctx, later.ID)
	require.NoError(t, err)
	require.Equal(t, StatusForming, untouched.Status)
}

func TestDeleteRefusedWhileJumpsAssigned(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	s, err := svc.Create(ctx, 1, CreateLoadRequest{AircraftID: 1, Departure: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	repo.jumpCount[s.ID] = 2
	err = svc.Delete(ctx, s.ID)
	require.True(t, shared.IsUserError(err))

	repo.jumpCount[s.ID] = 0
	require.NoError(t, svc.Delete(ctx, s.ID))
}

func TestComputeSpaces(t *testing.T) {
	s := ComputeSpaces(16, 4, 7, 1)
	require.Equal(t, 16, s.TotalSpaces)
	require.Equal(t, 5, s.RemainingPublic)
	require.Equal(t, 3, s.RemainingReserved)

	// Overbooked loads go negative rather than clamping, assignment
	// surfaces it as a warning.
	over := ComputeSpaces(4, 0, 5, 0)
	require.Equal(t, -1, over.RemainingPublic)
}

func TestValidateTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusForming, StatusOnCall, true},
		{StatusForming, StatusDeparted, true},
		{StatusOnCall, StatusDeparted, true},
		{StatusOnCall, StatusForming, false},
		{StatusDeparted, StatusOnCall, false},
		{StatusDeparted, StatusForming, false},
		{StatusForming, StatusForming, true},
	}
	for _, tc := range cases {
		err := ValidateTransition(tc.from, tc.to)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			require.Error(t, err, "%s -> %s", tc.from, tc.to)
		}
	}
}
