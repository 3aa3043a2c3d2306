package rbac_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/observability"
	"github.com/dropzone-hq/dropzone/internal/rbac"
	"github.com/dropzone-hq/dropzone/internal/shared"
	_ "github.com/dropzone-hq/dropzone/testing"
)

type stubDirectory struct {
	subjects map[int64]*authz.Subject
	err      error
}

func (s *stubDirectory) Subject(ctx context.Context, userID int64) (*authz.Subject, error) {
	if s.err != nil {
		return nil, s.err
	}
	subject, ok := s.subjects[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return subject, nil
}

type stubVerifier struct {
	userID int64
	err    error
}

func (s *stubVerifier) Verify(token string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.userID, nil
}

func newMiddleware(dir rbac.UserDirectory, tokens rbac.TokenVerifier) rbac.Middleware {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return rbac.Middleware{
		Service: rbac.NewService(dir, tokens, logger),
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}
}

func sessionContext(t *testing.T, userID int64) context.Context {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser(userID)
	return shared.ContextWithSession(context.Background(), sess)
}

func protectedRouter(m rbac.Middleware, guard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(m.LoadSubject)
	r.Group(func(r chi.Router) {
		r.Use(guard)
		r.Get("/secret", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	return r
}

func TestRequireAuthAnonymous(t *testing.T) {
	m := newMiddleware(&stubDirectory{}, nil)
	router := protectedRouter(m, m.RequireAuth())

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/secret", nil))

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireAuthSessionUser(t *testing.T) {
	dir := &stubDirectory{subjects: map[int64]*authz.Subject{
		7: {ID: 7, Roles: []authz.Role{authz.RoleSportPaid}},
	}}
	m := newMiddleware(dir, nil)
	router := protectedRouter(m, m.RequireAuth())

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 7))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAuthBearerToken(t *testing.T) {
	dir := &stubDirectory{subjects: map[int64]*authz.Subject{
		9: {ID: 9, Roles: []authz.Role{authz.RoleTandemInstructor}},
	}}
	m := newMiddleware(dir, &stubVerifier{userID: 9})
	router := protectedRouter(m, m.RequireAuth())

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
}

func TestInvalidBearerTokenIsAnonymous(t *testing.T) {
	m := newMiddleware(&stubDirectory{}, &stubVerifier{err: errors.New("token expired")})
	router := protectedRouter(m, m.RequireAuth())

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req.Header.Set("Authorization", "Bearer expired")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestSnapshotFetchFailureAnswersRetry(t *testing.T) {
	dir := &stubDirectory{err: errors.New("connection refused")}
	m := newMiddleware(dir, nil)
	router := protectedRouter(m, m.RequireAuth())

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 7))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusServiceUnavailable, res.Code)
	require.Equal(t, "1", res.Header().Get("Retry-After"))
}

func TestDeletedUserIsAnonymous(t *testing.T) {
	m := newMiddleware(&stubDirectory{subjects: map[int64]*authz.Subject{}}, nil)
	router := protectedRouter(m, m.RequireAuth())

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 42))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequirePermissionForbidden(t *testing.T) {
	dir := &stubDirectory{subjects: map[int64]*authz.Subject{
		7: {ID: 7, Roles: []authz.Role{authz.RoleTandemJumper}},
	}}
	m := newMiddleware(dir, nil)
	router := protectedRouter(m, m.RequirePermission(authz.PermissionManageUsers))

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 7))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestAdminPanelHiddenFromNonAdmins(t *testing.T) {
	dir := &stubDirectory{subjects: map[int64]*authz.Subject{
		7: {ID: 7, Roles: []authz.Role{authz.RoleSportPaid}},
		1: {ID: 1, Roles: []authz.Role{authz.RoleAdministrator}},
	}}
	m := newMiddleware(dir, nil)
	router := protectedRouter(m, m.AdminPanel())

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 7))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusNotFound, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 1))
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestInstructorOnlyAdmitsAdministrators(t *testing.T) {
	dir := &stubDirectory{subjects: map[int64]*authz.Subject{
		1: {ID: 1, Roles: []authz.Role{authz.RoleAdministrator}},
		2: {ID: 2, Roles: []authz.Role{authz.RoleSportPaid}},
	}}
	m := newMiddleware(dir, nil)
	router := protectedRouter(m, m.InstructorOnly())

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 1))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 2))
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestMyPermissionsListing(t *testing.T) {
	dir := &stubDirectory{subjects: map[int64]*authz.Subject{
		5: {ID: 5, Roles: []authz.Role{authz.RoleSportFree}},
	}}
	m := newMiddleware(dir, nil)
	handler := rbac.NewPermissionsHandler(m)

	r := chi.NewRouter()
	r.Use(m.LoadSubject)
	r.Route("/users", handler.MountRoutes)

	req := httptest.NewRequest(http.MethodGet, "/users/me/permissions", nil)
	req = req.WithContext(sessionContext(t, 5))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"JOIN_MANIFEST"`)
	require.NotContains(t, res.Body.String(), `"ADMIN_ACCESS"`)
}

func TestRequireRoleIsExact(t *testing.T) {
	dir := &stubDirectory{subjects: map[int64]*authz.Subject{
		1: {ID: 1, Roles: []authz.Role{authz.RoleAdministrator}},
		3: {ID: 3, Roles: []authz.Role{authz.RoleTandemInstructor}},
	}}
	m := newMiddleware(dir, nil)
	router := protectedRouter(m, m.RequireRole(authz.RoleTandemInstructor))

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 3))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	// No admin bypass on exact role checks.
	req = httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 1))
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireAllRolesNeedsEveryRole(t *testing.T) {
	dir := &stubDirectory{subjects: map[int64]*authz.Subject{
		4: {ID: 4, Roles: []authz.Role{authz.RoleSportFree, authz.RoleAFFInstructor}},
		5: {ID: 5, Roles: []authz.Role{authz.RoleSportFree}},
	}}
	m := newMiddleware(dir, nil)
	router := protectedRouter(m, m.RequireAllRoles(authz.RoleSportFree, authz.RoleAFFInstructor))

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 4))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 5))
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestSportJumpersOnlyAdmitsStudents(t *testing.T) {
	dir := &stubDirectory{subjects: map[int64]*authz.Subject{
		6: {ID: 6, Roles: []authz.Role{authz.RoleAFFStudent}},
		7: {ID: 7, Roles: []authz.Role{authz.RoleTandemJumper}},
	}}
	m := newMiddleware(dir, nil)
	router := protectedRouter(m, m.SportJumpersOnly())

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 6))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/secret", nil)
	req = req.WithContext(sessionContext(t, 7))
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)
}
