package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/platform/httpx"
)

// PermissionsHandler serves the effective-permission listing clients use to
// decide which surfaces to show.
type PermissionsHandler struct {
	rbac Middleware
}

// NewPermissionsHandler builds a PermissionsHandler instance.
func NewPermissionsHandler(rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{rbac: rbac}
}

// MountRoutes registers permission routes on the users subtree.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuth())
		r.Get("/me/permissions", h.myPermissions)
	})
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	subject := SubjectFromContext(r.Context())
	granted := authz.PermissionsFor(subject)
	out := make([]string, 0, len(granted))
	for _, p := range granted {
		out = append(out, p.String())
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}
