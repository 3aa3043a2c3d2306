package users

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/shared"
	_ "github.com/dropzone-hq/dropzone/testing"
)

type memoryRepo struct {
	users  map[int64]*User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]*User), nextID: 1}
}

func cloneUser(u *User) *User {
	out := *u
	out.Roles = append([]authz.Role(nil), u.Roles...)
	return &out
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *memoryRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	for _, u := range m.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			return cloneUser(u), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username != nil && strings.EqualFold(*u.Username, username) {
			return cloneUser(u), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryRepo) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	var out []User
	for _, u := range m.users {
		if req.Role != "" && !authz.HasRole(u.Subject(), req.Role) {
			continue
		}
		out = append(out, *cloneUser(u))
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(ctx context.Context, user User) (int64, error) {
	id := m.nextID
	m.nextID++
	user.ID = id
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	m.users[id] = cloneUser(&user)
	return id, nil
}

func (m *memoryRepo) Update(ctx context.Context, user User) error {
	stored, ok := m.users[user.ID]
	if !ok {
		return shared.ErrNotFound
	}
	roles := stored.Roles
	m.users[user.ID] = cloneUser(&user)
	m.users[user.ID].Roles = roles
	return nil
}

func (m *memoryRepo) ReplaceRoles(ctx context.Context, userID int64, roles []authz.Role) error {
	u, ok := m.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.Roles = append([]authz.Role(nil), roles...)
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func seedUser(repo *memoryRepo, roles ...authz.Role) int64 {
	id, _ := repo.Create(context.Background(), User{FirstName: "Sky", LastName: "Diver", Roles: roles})
	return id
}

func TestReplaceRolesSwapsSet(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	id := seedUser(repo, authz.RoleTandemJumper)

	user, err := svc.ReplaceRoles(context.Background(), 99, id, []string{"sport_paid", "sport_paid"})
	require.NoError(t, err)
	require.Equal(t, []authz.Role{authz.RoleSportPaid}, user.Roles)
}

func TestReplaceRolesRejectsUnknownRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	id := seedUser(repo, authz.RoleTandemJumper)

	_, err := svc.ReplaceRoles(context.Background(), 99, id, []string{"wing_walker"})
	require.Error(t, err)
	require.True(t, shared.IsUserError(err))
}

func TestDeleteOwnAccountRefused(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	id := seedUser(repo, authz.RoleAdministrator)

	err := svc.Delete(context.Background(), id, id)
	require.Error(t, err)
	require.True(t, shared.IsUserError(err))

	err = svc.Delete(context.Background(), id+1, id)
	require.NoError(t, err)
}

func TestUpdateProfileTouchesOnlyProvidedFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	id := seedUser(repo, authz.RoleSportPaid)

	display := "Skygod"
	user, err := svc.UpdateProfile(context.Background(), id, UpdateProfileRequest{DisplayName: &display})
	require.NoError(t, err)
	require.Equal(t, "Skygod", user.Name())
	require.Equal(t, "Sky", user.FirstName)
}

func TestSubjectSnapshot(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	id := seedUser(repo, authz.RoleSportFree, authz.RoleAFFInstructor)

	subject, err := svc.Subject(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, subject.ID)
	require.True(t, authz.HasPermission(subject, authz.PermissionJoinManifest))

	_, err = svc.Subject(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestNameFallsBackToFirstLast(t *testing.T) {
	u := &User{FirstName: "Anna", LastName: "Berg"}
	require.Equal(t, "Anna Berg", u.Name())

	empty := ""
	u.DisplayName = &empty
	require.Equal(t, "Anna Berg", u.Name())
}
