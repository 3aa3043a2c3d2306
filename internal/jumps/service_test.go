package jumps

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/jumptypes"
	"github.com/dropzone-hq/dropzone/internal/loads"
	"github.com/dropzone-hq/dropzone/internal/observability"
	"github.com/dropzone-hq/dropzone/internal/shared"
	"github.com/dropzone-hq/dropzone/internal/users"
	_ "github.com/dropzone-hq/dropzone/testing"
)

const (
	typeTandem int64 = 1
	typeSport  int64 = 2
	typeStaff  int64 = 3
)

const (
	loadForming  int64 = 10
	loadCramped  int64 = 11
	loadDeparted int64 = 12
)

var departedAt = time.Date(2025, 6, 14, 13, 30, 0, 0, time.UTC)

type memoryRepo struct {
	nextID    int64
	items     map[int64]Jump
	typeNames map[int64]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID: 1,
		items:  map[int64]Jump{},
		typeNames: map[int64]string{
			typeTandem: "Tandem",
			typeSport:  "Sport Jump",
			typeStaff:  "Tandem Staff",
		},
	}
}

func (m *memoryRepo) add(j Jump) int64 {
	j.ID = m.nextID
	m.nextID++
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	m.items[j.ID] = j
	return j.ID
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Jump, error) {
	j, ok := m.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	j.JumpTypeName = m.typeNames[j.JumpTypeID]
	return &j, nil
}

func (m *memoryRepo) List(_ context.Context, req ListJumpsRequest) ([]Jump, error) {
	out := []Jump{}
	for _, j := range m.items {
		if req.UserID != 0 && j.UserID != req.UserID {
			continue
		}
		if req.JumpTypeID != 0 && j.JumpTypeID != req.JumpTypeID {
			continue
		}
		if req.LoadID != 0 && (j.LoadID == nil || *j.LoadID != req.LoadID) {
			continue
		}
		if req.ParentJumpID != 0 && (j.ParentJumpID == nil || *j.ParentJumpID != req.ParentJumpID) {
			continue
		}
		if req.IsManifested != nil && j.IsManifested != *req.IsManifested {
			continue
		}
		if req.HasParent != nil && (j.ParentJumpID != nil) != *req.HasParent {
			continue
		}
		if req.HasLoad != nil && (j.LoadID != nil) != *req.HasLoad {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (m *memoryRepo) ListByLoad(ctx context.Context, loadID int64) ([]Jump, error) {
	return m.List(ctx, ListJumpsRequest{LoadID: loadID})
}

func (m *memoryRepo) Logbook(_ context.Context, userID int64, req LogbookRequest) ([]Jump, error) {
	out := []Jump{}
	for _, j := range m.items {
		if j.UserID != userID || !j.IsManifested || j.JumpDate == nil {
			continue
		}
		if req.From != nil && j.JumpDate.Before(*req.From) {
			continue
		}
		if req.To != nil && j.JumpDate.After(*req.To) {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].JumpDate.After(*out[k].JumpDate) })
	return out, nil
}

func (m *memoryRepo) Stats(_ context.Context, userID int64, from, to *time.Time) (*Stats, error) {
	st := &Stats{ByType: map[string]int{}}
	for _, j := range m.items {
		if j.UserID != userID || !j.IsManifested || j.JumpDate == nil {
			continue
		}
		if from != nil && j.JumpDate.Before(*from) {
			continue
		}
		if to != nil && j.JumpDate.After(*to) {
			continue
		}
		st.TotalJumps++
		st.ByType[m.typeNames[j.JumpTypeID]]++
	}
	return st, nil
}

func (m *memoryRepo) Create(_ context.Context, j Jump) (int64, error) {
	return m.add(j), nil
}

func (m *memoryRepo) Update(_ context.Context, j Jump, replaceEquipment bool) error {
	cur, ok := m.items[j.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if !replaceEquipment {
		j.EquipmentIDs = cur.EquipmentIDs
	}
	j.CreatedAt = cur.CreatedAt
	m.items[j.ID] = j
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memoryRepo) CountChildren(_ context.Context, parentID int64) (int, error) {
	n := 0
	for _, j := range m.items {
		if j.ParentJumpID != nil && *j.ParentJumpID == parentID {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) UserOnLoad(_ context.Context, userID, loadID, excludeJumpID int64) (bool, error) {
	for _, j := range m.items {
		if j.ID == excludeJumpID {
			continue
		}
		if j.UserID == userID && j.LoadID != nil && *j.LoadID == loadID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) AssignToLoad(_ context.Context, main Jump, staff []Jump) ([]int64, error) {
	cur, ok := m.items[main.ID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	// The SQL update keeps the stored jump_date when none is given.
	if main.JumpDate == nil {
		main.JumpDate = cur.JumpDate
	}
	main.CreatedAt = cur.CreatedAt
	m.items[main.ID] = main

	ids := []int64{main.ID}
	for _, sj := range staff {
		ids = append(ids, m.add(sj))
	}
	return ids, nil
}

func (m *memoryRepo) RemoveFromLoad(_ context.Context, main Jump) ([]int64, error) {
	cur, ok := m.items[main.ID]
	if !ok {
		return nil, shared.ErrNotFound
	}

	childIDs := []int64{}
	for id, j := range m.items {
		if j.ParentJumpID != nil && *j.ParentJumpID == main.ID {
			childIDs = append(childIDs, id)
		}
	}
	sort.Slice(childIDs, func(i, k int) bool { return childIDs[i] < childIDs[k] })
	for _, id := range childIDs {
		delete(m.items, id)
	}

	main.LoadID = nil
	main.JumpDate = nil
	main.Reserved = false
	main.CreatedAt = cur.CreatedAt
	m.items[main.ID] = main
	return childIDs, nil
}

type stubUsers struct{ users map[int64]users.User }

func (s stubUsers) Get(_ context.Context, id int64) (*users.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

type stubTypes struct{ types map[int64]jumptypes.JumpType }

func (s stubTypes) Get(_ context.Context, id int64) (*jumptypes.JumpType, error) {
	jt, ok := s.types[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &jt, nil
}

type stubBoard struct{ summaries map[int64]loads.Summary }

func (s stubBoard) Get(ctx context.Context, id int64) (*loads.Load, error) {
	sum, err := s.GetSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	return &sum.Load, nil
}

func (s stubBoard) GetSummary(_ context.Context, id int64) (*loads.Summary, error) {
	sum, ok := s.summaries[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &sum, nil
}

func boardLoad(id int64, status loads.Status, maxLoad, reserved, occupiedPublic, occupiedReserved int, departure time.Time) loads.Summary {
	return loads.Summary{
		Load: loads.Load{
			ID:             id,
			AircraftID:     1,
			Departure:      departure,
			Status:         status,
			MaxLoad:        maxLoad,
			ReservedSpaces: reserved,
		},
		IndexNumber: 1,
		Spaces:      loads.ComputeSpaces(maxLoad, reserved, occupiedPublic, occupiedReserved),
	}
}

func newTestService(repo *memoryRepo) *Service {
	dir := stubUsers{users: map[int64]users.User{
		1: {ID: 1, FirstName: "Maja", LastName: "Holm", Roles: []authz.Role{authz.RoleTandemJumper}},
		2: {ID: 2, FirstName: "Erik", LastName: "Lund", Roles: []authz.Role{authz.RoleTandemInstructor}},
		3: {ID: 3, FirstName: "Anna", LastName: "Berg", Roles: []authz.Role{authz.RoleSportPaid}},
	}}
	staffType := typeStaff
	types := stubTypes{types: map[int64]jumptypes.JumpType{
		typeTandem: {ID: typeTandem, Name: "Tandem", ShortName: "TD", IsAvailable: true,
			Staff: []jumptypes.StaffRequirement{{RequiredRole: authz.RoleTandemInstructor, DefaultJumpTypeID: &staffType}}},
		typeSport: {ID: typeSport, Name: "Sport Jump", ShortName: "SP", IsAvailable: true},
		typeStaff: {ID: typeStaff, Name: "Tandem Staff", ShortName: "TS", IsAvailable: true},
	}}
	board := stubBoard{summaries: map[int64]loads.Summary{
		loadForming:  boardLoad(loadForming, loads.StatusForming, 16, 4, 0, 0, time.Now().Add(time.Hour)),
		loadCramped:  boardLoad(loadCramped, loads.StatusForming, 4, 0, 3, 0, time.Now().Add(time.Hour)),
		loadDeparted: boardLoad(loadDeparted, loads.StatusDeparted, 16, 0, 2, 0, departedAt),
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, dir, types, board, nil, logger, observability.NewMetrics())
}

func TestAssignCreatesStaffJumps(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	jid := repo.add(Jump{UserID: 1, JumpTypeID: typeTandem, IsManifested: true})

	res, err := svc.AssignToLoad(context.Background(), 9, AssignRequest{
		JumpID:           jid,
		LoadID:           loadForming,
		StaffAssignments: map[string]int64{string(authz.RoleTandemInstructor): 2},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "Jump assigned to load 10", res.Message)
	require.Nil(t, res.Warning)
	require.Len(t, res.AssignedJumpIDs, 2)
	require.Equal(t, jid, res.AssignedJumpIDs[0])

	main, err := repo.Get(context.Background(), jid)
	require.NoError(t, err)
	require.NotNil(t, main.LoadID)
	require.Equal(t, loadForming, *main.LoadID)
	require.True(t, main.IsManifested)
	require.Nil(t, main.JumpDate)

	staff, err := repo.Get(context.Background(), res.AssignedJumpIDs[1])
	require.NoError(t, err)
	require.Equal(t, int64(2), staff.UserID)
	require.Equal(t, typeStaff, staff.JumpTypeID)
	require.True(t, staff.IsManifested)
	require.Equal(t, jid, *staff.ParentJumpID)
	require.Equal(t, loadForming, *staff.LoadID)
	require.Equal(t, "Staff for Maja Holm", *staff.Comment)
}

func TestAssignRequiresStaffAssignment(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	jid := repo.add(Jump{UserID: 1, JumpTypeID: typeTandem, IsManifested: true})

	_, err := svc.AssignToLoad(context.Background(), 9, AssignRequest{JumpID: jid, LoadID: loadForming})
	require.True(t, shared.IsUserError(err))
	require.EqualError(t, err, "Staff user_id required for role: tandem_instructor")
}

func TestAssignRejectsDuplicateUserOnLoad(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	lid := loadForming
	repo.add(Jump{UserID: 3, JumpTypeID: typeSport, IsManifested: true, LoadID: &lid})
	jid := repo.add(Jump{UserID: 3, JumpTypeID: typeSport, IsManifested: true})

	_, err := svc.AssignToLoad(context.Background(), 9, AssignRequest{JumpID: jid, LoadID: loadForming})
	require.True(t, shared.IsUserError(err))
	require.EqualError(t, err, "User already has a jump in this load")
}

func TestAssignRejectsStaffAlreadyOnLoad(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	lid := loadForming
	repo.add(Jump{UserID: 2, JumpTypeID: typeStaff, IsManifested: true, LoadID: &lid})
	jid := repo.add(Jump{UserID: 1, JumpTypeID: typeTandem, IsManifested: true})

	_, err := svc.AssignToLoad(context.Background(), 9, AssignRequest{
		JumpID:           jid,
		LoadID:           loadForming,
		StaffAssignments: map[string]int64{string(authz.RoleTandemInstructor): 2},
	})
	require.True(t, shared.IsUserError(err))
	require.EqualError(t, err, "Staff user 2 already has a jump in this load")
}

func TestAssignWarnsOnCapacityShortfall(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	jid := repo.add(Jump{UserID: 1, JumpTypeID: typeTandem, IsManifested: true})

	res, err := svc.AssignToLoad(context.Background(), 9, AssignRequest{
		JumpID:           jid,
		LoadID:           loadCramped,
		StaffAssignments: map[string]int64{string(authz.RoleTandemInstructor): 2},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Warning)
	require.Equal(t, "Load has only 1 available public spaces but 2 are needed", *res.Warning)

	// The shortfall warns but does not block.
	main, err := repo.Get(context.Background(), jid)
	require.NoError(t, err)
	require.Equal(t, loadCramped, *main.LoadID)

	jid2 := repo.add(Jump{UserID: 3, JumpTypeID: typeSport, IsManifested: true})
	res2, err := svc.AssignToLoad(context.Background(), 9, AssignRequest{
		JumpID:   jid2,
		LoadID:   loadCramped,
		Reserved: true,
	})
	require.NoError(t, err)
	require.NotNil(t, res2.Warning)
	require.Equal(t, "Load has only 0 available reserved spaces but 1 are needed", *res2.Warning)
}

func TestAssignStampsJumpDateOnDepartedLoad(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	jid := repo.add(Jump{UserID: 3, JumpTypeID: typeSport, IsManifested: true})

	_, err := svc.AssignToLoad(context.Background(), 9, AssignRequest{JumpID: jid, LoadID: loadDeparted})
	require.NoError(t, err)

	main, err := repo.Get(context.Background(), jid)
	require.NoError(t, err)
	require.NotNil(t, main.JumpDate)
	require.True(t, main.JumpDate.Equal(departedAt))
}

func TestAssignUnknownStaffUser(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	jid := repo.add(Jump{UserID: 1, JumpTypeID: typeTandem, IsManifested: true})

	_, err := svc.AssignToLoad(context.Background(), 9, AssignRequest{
		JumpID:           jid,
		LoadID:           loadForming,
		StaffAssignments: map[string]int64{string(authz.RoleTandemInstructor): 99},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.EqualError(t, err, "Staff user 99 not found")
}

func TestRemoveDeletesStaffJumps(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	jid := repo.add(Jump{UserID: 1, JumpTypeID: typeTandem, IsManifested: true})

	res, err := svc.AssignToLoad(context.Background(), 9, AssignRequest{
		JumpID:           jid,
		LoadID:           loadForming,
		Reserved:         true,
		StaffAssignments: map[string]int64{string(authz.RoleTandemInstructor): 2},
	})
	require.NoError(t, err)
	staffID := res.AssignedJumpIDs[1]

	rres, err := svc.RemoveFromLoad(context.Background(), 9, RemoveRequest{JumpID: jid})
	require.NoError(t, err)
	require.True(t, rres.Success)
	require.Equal(t, "Jump removed from load", rres.Message)
	require.Equal(t, []int64{jid, staffID}, rres.RemovedJumpIDs)

	_, err = repo.Get(context.Background(), staffID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	// The jump returns to the unassigned pool, still manifested.
	main, err := repo.Get(context.Background(), jid)
	require.NoError(t, err)
	require.Nil(t, main.LoadID)
	require.Nil(t, main.JumpDate)
	require.False(t, main.Reserved)
	require.True(t, main.IsManifested)
}

func TestRemoveRequiresLoad(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	jid := repo.add(Jump{UserID: 1, JumpTypeID: typeSport, IsManifested: true})

	_, err := svc.RemoveFromLoad(context.Background(), 9, RemoveRequest{JumpID: jid})
	require.True(t, shared.IsUserError(err))
	require.EqualError(t, err, "Jump is not assigned to any load")
}

func TestUpdateRefusesDirectLoadChange(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	jid := repo.add(Jump{UserID: 3, JumpTypeID: typeSport})
	lid := loadForming

	_, err := svc.Update(context.Background(), 9, jid, UpdateJumpRequest{LoadID: &lid})
	require.True(t, shared.IsUserError(err))
	require.EqualError(t, err, "Cannot update load_id directly. Use load assignment endpoints.")
}

func TestDeleteGuards(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	lid := loadForming
	onLoad := repo.add(Jump{UserID: 3, JumpTypeID: typeSport, IsManifested: true, LoadID: &lid})
	parent := repo.add(Jump{UserID: 1, JumpTypeID: typeTandem, IsManifested: true})
	repo.add(Jump{UserID: 2, JumpTypeID: typeStaff, IsManifested: true, ParentJumpID: &parent})
	plain := repo.add(Jump{UserID: 3, JumpTypeID: typeSport})

	err := svc.Delete(context.Background(), onLoad)
	require.EqualError(t, err, "Cannot delete jump that is assigned to a load. Remove from load first.")

	err = svc.Delete(context.Background(), parent)
	require.EqualError(t, err, "Cannot delete jump that has linked staff jumps. Remove from load first.")

	require.NoError(t, svc.Delete(context.Background(), plain))
	_, err = repo.Get(context.Background(), plain)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetEnforcesOwnership(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	jid := repo.add(Jump{UserID: 3, JumpTypeID: typeSport})

	owner := &authz.Subject{ID: 3, Roles: []authz.Role{authz.RoleSportPaid}}
	other := &authz.Subject{ID: 1, Roles: []authz.Role{authz.RoleTandemJumper}}
	admin := &authz.Subject{ID: 2, Roles: []authz.Role{authz.RoleAdministrator}}

	j, err := svc.Get(context.Background(), owner, jid)
	require.NoError(t, err)
	require.Equal(t, jid, j.ID)

	_, err = svc.Get(context.Background(), other, jid)
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Get(context.Background(), admin, jid)
	require.NoError(t, err)
}

func TestCreateValidatesReferences(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), 9, CreateJumpRequest{UserID: 99, JumpTypeID: typeSport})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Create(context.Background(), 9, CreateJumpRequest{UserID: 3, JumpTypeID: 77})
	require.ErrorIs(t, err, shared.ErrNotFound)

	j, err := svc.Create(context.Background(), 9, CreateJumpRequest{
		UserID:       3,
		JumpTypeID:   typeSport,
		EquipmentIDs: []int64{5, 6},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{5, 6}, j.EquipmentIDs)
	require.Equal(t, int64(9), *j.CreatedBy)
}

func TestStatsCountsPerformedJumpsByType(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	d1 := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d3 := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	repo.add(Jump{UserID: 3, JumpTypeID: typeSport, IsManifested: true, JumpDate: &d1})
	repo.add(Jump{UserID: 3, JumpTypeID: typeSport, IsManifested: true, JumpDate: &d2})
	repo.add(Jump{UserID: 3, JumpTypeID: typeTandem, IsManifested: true, JumpDate: &d3})
	repo.add(Jump{UserID: 3, JumpTypeID: typeSport, IsManifested: true}) // planned, no date yet
	repo.add(Jump{UserID: 3, JumpTypeID: typeSport, JumpDate: &d3})      // never manifested
	repo.add(Jump{UserID: 1, JumpTypeID: typeSport, IsManifested: true, JumpDate: &d3})

	st, err := svc.Stats(context.Background(), 3, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 3, st.TotalJumps)
	require.Equal(t, map[string]int{"Sport Jump": 2, "Tandem": 1}, st.ByType)

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	st, err = svc.Stats(context.Background(), 3, &from, nil)
	require.NoError(t, err)
	require.Equal(t, 2, st.TotalJumps)
}

func TestLogbookNewestFirst(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	d1 := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := repo.add(Jump{UserID: 3, JumpTypeID: typeSport, IsManifested: true, JumpDate: &d1})
	b := repo.add(Jump{UserID: 3, JumpTypeID: typeTandem, IsManifested: true, JumpDate: &d2})
	repo.add(Jump{UserID: 3, JumpTypeID: typeSport, IsManifested: true})

	out, err := svc.Logbook(context.Background(), 3, LogbookRequest{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, b, out[0].ID)
	require.Equal(t, a, out[1].ID)
}

func TestListByLoadUnknownLoad(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.ListByLoad(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
