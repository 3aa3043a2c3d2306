package rbac

import (
	"net/http"

	"log/slog"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/observability"
	"github.com/dropzone-hq/dropzone/internal/platform/httpx"
)

// Middleware wires gate evaluation into HTTP routing.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// LoadSubject resolves the current subject once and stores it in the
// request context. Mount it before any Protect group.
func (m Middleware) LoadSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, loading := m.Service.ResolveSubject(r.Context(), r)
		ctx := contextWithState(r.Context(), subjectState{subject: subject, loading: loading})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Protect evaluates the gate against the resolved subject and maps the
// decision onto HTTP:
//
//	allow      pass through
//	loading    503 with Retry-After
//	login      401
//	not found  404
//	forbidden  403
func (m Middleware) Protect(gate authz.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := stateFromContext(r.Context())
			decision := authz.Decide(state.subject, state.loading, gate)
			m.Metrics.ObserveGateDecision(decision.String())
			switch decision {
			case authz.DecisionAllow:
				next.ServeHTTP(w, r)
			case authz.DecisionLoading:
				w.Header().Set("Retry-After", "1")
				httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "session state is still loading, retry shortly")
			case authz.DecisionLogin:
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			case authz.DecisionNotFound:
				httpx.Problem(w, http.StatusNotFound, "Not Found", "resource not found")
			default:
				if m.Logger != nil {
					m.Logger.Debug("request denied", slog.String("path", r.URL.Path))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
			}
		})
	}
}

// protected adds the standard API posture to a gate: anonymous callers get
// a login challenge and transient snapshot failures a retry, never a false
// denial.
func protected(gate authz.Gate) authz.Gate {
	gate.RequireAuth = true
	gate.ShowLoadingState = true
	return gate
}

// RequireAuth admits any authenticated user.
func (m Middleware) RequireAuth() func(http.Handler) http.Handler {
	return m.Protect(protected(authz.Gate{}))
}

// RequirePermission admits users whose roles grant the permission.
func (m Middleware) RequirePermission(p authz.Permission) func(http.Handler) http.Handler {
	return m.Protect(protected(authz.Gate{Permission: p}))
}

// RequireRole admits users holding the exact role.
func (m Middleware) RequireRole(role authz.Role) func(http.Handler) http.Handler {
	return m.Protect(protected(authz.Gate{Role: role}))
}

// RequireAnyRole admits users holding at least one of the roles.
func (m Middleware) RequireAnyRole(roles ...authz.Role) func(http.Handler) http.Handler {
	return m.Protect(protected(authz.Gate{AnyRole: roles}))
}

// RequireAllRoles admits users holding every listed role.
func (m Middleware) RequireAllRoles(roles ...authz.Role) func(http.Handler) http.Handler {
	return m.Protect(protected(authz.Gate{AllRoles: roles}))
}

// AdminOnly guards management endpoints.
func (m Middleware) AdminOnly() func(http.Handler) http.Handler {
	return m.Protect(protected(authz.AdminOnly()))
}

// InstructorOnly guards staff endpoints. Administrators pass through the
// permission grant even without an instructor role.
func (m Middleware) InstructorOnly() func(http.Handler) http.Handler {
	return m.Protect(protected(authz.InstructorOnly()))
}

// SportJumpersOnly guards self-manifesting endpoints.
func (m Middleware) SportJumpersOnly() func(http.Handler) http.Handler {
	return m.Protect(protected(authz.SportJumperOnly()))
}

// ExcludeNewUsers keeps users who only hold the signup role out.
func (m Middleware) ExcludeNewUsers() func(http.Handler) http.Handler {
	return m.Protect(protected(authz.ExcludeNewUsers()))
}

// AdminPanel hides the admin surface: denied users see a plain 404 instead
// of a forbidden response.
func (m Middleware) AdminPanel() func(http.Handler) http.Handler {
	gate := protected(authz.Gate{Permission: authz.PermissionViewAdminPanel})
	gate.Use404Fallback = true
	return m.Protect(gate)
}
