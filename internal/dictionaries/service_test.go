package dictionaries

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropzone-hq/dropzone/internal/shared"
	_ "github.com/dropzone-hq/dropzone/testing"
)

type memoryRepo struct {
	nextID       int64
	dictionaries map[int64]Dictionary
	values       map[int64]Value
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID:       1,
		dictionaries: map[int64]Dictionary{},
		values:       map[int64]Value{},
	}
}

func (m *memoryRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryRepo) List(_ context.Context) ([]Dictionary, error) {
	out := make([]Dictionary, 0, len(m.dictionaries))
	for _, d := range m.dictionaries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Dictionary, error) {
	d, ok := m.dictionaries[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &d, nil
}

func (m *memoryRepo) GetByName(_ context.Context, name string) (*Dictionary, error) {
	for _, d := range m.dictionaries {
		if d.Name == name {
			return &d, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryRepo) Create(_ context.Context, name string) (int64, error) {
	id := m.id()
	m.dictionaries[id] = Dictionary{ID: id, Name: name, IsActive: true, CreatedAt: time.Now()}
	return id, nil
}

func (m *memoryRepo) Update(_ context.Context, d Dictionary) error {
	if _, ok := m.dictionaries[d.ID]; !ok {
		return shared.ErrNotFound
	}
	m.dictionaries[d.ID] = d
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.dictionaries[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.dictionaries, id)
	return nil
}

func (m *memoryRepo) ListValues(_ context.Context, dictionaryID int64, activeOnly bool) ([]Value, error) {
	out := make([]Value, 0)
	for _, v := range m.values {
		if v.DictionaryID != dictionaryID {
			continue
		}
		if activeOnly && !v.IsActive {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) GetValue(_ context.Context, id int64) (*Value, error) {
	v, ok := m.values[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &v, nil
}

func (m *memoryRepo) CreateValue(_ context.Context, dictionaryID int64, value string) (int64, error) {
	id := m.id()
	m.values[id] = Value{ID: id, DictionaryID: dictionaryID, Value: value, IsActive: true, CreatedAt: time.Now()}
	return id, nil
}

func (m *memoryRepo) UpdateValue(_ context.Context, v Value) error {
	if _, ok := m.values[v.ID]; !ok {
		return shared.ErrNotFound
	}
	m.values[v.ID] = v
	return nil
}

func (m *memoryRepo) DeleteValue(_ context.Context, id int64) error {
	if _, ok := m.values[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.values, id)
	return nil
}

func seedDictionary(repo *memoryRepo, name string, values ...Value) int64 {
	id := repo.id()
	repo.dictionaries[id] = Dictionary{ID: id, Name: name, IsActive: true}
	for _, v := range values {
		vid := repo.id()
		v.ID = vid
		v.DictionaryID = id
		repo.values[vid] = v
	}
	return id
}

func TestSystemValueCannotBeDeleted(t *testing.T) {
	repo := newMemoryRepo()
	seedDictionary(repo, "equipment_type",
		Value{Value: "Parachute system", IsSystem: true, IsActive: true},
		Value{Value: "Altimeter", IsActive: true},
	)
	svc := NewService(repo)

	values, err := repo.ListValues(context.Background(), 1, false)
	require.NoError(t, err)
	require.Len(t, values, 2)

	var system, plain Value
	for _, v := range values {
		if v.IsSystem {
			system = v
		} else {
			plain = v
		}
	}

	err = svc.DeleteValue(context.Background(), system.ID)
	require.Error(t, err)
	require.True(t, shared.IsUserError(err))

	require.NoError(t, svc.DeleteValue(context.Background(), plain.ID))
	_, err = repo.GetValue(context.Background(), plain.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDictionaryWithSystemValuesCannotBeDeleted(t *testing.T) {
	repo := newMemoryRepo()
	id := seedDictionary(repo, "equipment_status",
		Value{Value: "In service", IsSystem: true, IsActive: true},
	)
	svc := NewService(repo)

	err := svc.Delete(context.Background(), id)
	require.True(t, shared.IsUserError(err))
	_, err = repo.Get(context.Background(), id)
	require.NoError(t, err)
}

func TestValuesByNameFiltersInactive(t *testing.T) {
	repo := newMemoryRepo()
	seedDictionary(repo, "jump_purpose",
		Value{Value: "Training", IsActive: true},
		Value{Value: "Competition", IsActive: false},
	)
	svc := NewService(repo)

	all, err := svc.ValuesByName(context.Background(), "jump_purpose", false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	active, err := svc.ValuesByName(context.Background(), "jump_purpose", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Training", active[0].Value)

	_, err = svc.ValuesByName(context.Background(), "no_such_dictionary", false)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateValueTogglesActivity(t *testing.T) {
	repo := newMemoryRepo()
	seedDictionary(repo, "equipment_type", Value{Value: "Helmet", IsActive: true})
	svc := NewService(repo)

	inactive := false
	v, err := svc.UpdateValue(context.Background(), 2, UpdateValueRequest{IsActive: &inactive})
	require.NoError(t, err)
	require.False(t, v.IsActive)
	require.Equal(t, "Helmet", v.Value)
}

func TestCreateValueRequiresDictionary(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	_, err := svc.CreateValue(context.Background(), 99, CreateValueRequest{Value: "Orphan"})
	require.True(t, errors.Is(err, shared.ErrNotFound))
}
