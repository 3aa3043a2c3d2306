package manifests

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/loads"
	"github.com/dropzone-hq/dropzone/internal/platform/httpx"
	"github.com/dropzone-hq/dropzone/internal/rbac"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

// Handler exposes manifest endpoints and the board view.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		rbac:     rbacMW,
		validate: validator.New(),
	}
}

// MountRoutes registers the /manifests subtree.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuth())
		r.Get("/me", h.my)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})

	// Sport jumpers sign up through the permission, admins through their
	// role.
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAnyRole(authz.RoleSportPaid, authz.RoleSportFree, authz.RoleAdministrator))
		r.Post("/", h.create)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(authz.PermissionApproveJumps))
		r.Get("/", h.list)
		r.Get("/pending", h.pending)
		r.Get("/{id}/history", h.history)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/decline", h.decline)
	})
}

// MountBoardRoutes registers the board view; the router mounts it under
// /manifest next to the assignment actions.
func (h *Handler) MountBoardRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(authz.PermissionViewManifest))
		r.Get("/", h.board)
	})
}

func (h *Handler) my(w http.ResponseWriter, r *http.Request) {
	subject := rbac.SubjectFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.service.My(r.Context(), subject.ID, limit, offset)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	subject := rbac.SubjectFromContext(r.Context())
	var req CreateManifestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	m, err := h.service.Create(r.Context(), subject, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	subject := rbac.SubjectFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.service.Get(r.Context(), subject, id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	subject := rbac.SubjectFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateManifestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	m, err := h.service.Update(r.Context(), subject, id, req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	subject := rbac.SubjectFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), subject, id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Manifest deleted successfully")
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListManifestsRequest{}
	req.UserID, _ = strconv.ParseInt(q.Get("user_id"), 10, 64)
	req.Limit, _ = strconv.Atoi(q.Get("limit"))
	req.Offset, _ = strconv.Atoi(q.Get("offset"))
	if raw := q.Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		req.Status = &status
	}

	items, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.service.Pending(r.Context(), limit, offset)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	steps, err := h.service.History(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, steps)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	subject := rbac.SubjectFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	// The body is optional: approving without a load parks the jump in
	// the unassigned pool.
	var req ApproveRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation failed", err.Error())
			return
		}
	}
	if err := h.service.Approve(r.Context(), subject.ID, id, req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Manifest approved and jump created")
}

func (h *Handler) decline(w http.ResponseWriter, r *http.Request) {
	subject := rbac.SubjectFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req DeclineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	if err := h.service.Decline(r.Context(), subject.ID, id, req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Manifest declined")
}

func (h *Handler) board(w http.ResponseWriter, r *http.Request) {
	req, err := parseBoardRequest(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	board, err := h.service.Board(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, board)
}

func parseBoardRequest(r *http.Request) (BoardRequest, error) {
	loadsReq, err := loads.ParseListRequest(r)
	if err != nil {
		return BoardRequest{}, err
	}
	q := r.URL.Query()
	// The board defaults to today's loads; /loads defaults to all.
	if !q.Has("hide_old") {
		loadsReq.HideOld = true
	}

	req := BoardRequest{Loads: loadsReq, IsManifested: true}
	if raw := q.Get("selected_load_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return req, shared.Invalid("selected_load_id must be a positive integer")
		}
		req.SelectedLoadID = &id
	}
	if raw := q.Get("is_manifested"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return req, shared.Invalid("is_manifested must be a boolean")
		}
		req.IsManifested = v
	}
	return req, nil
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "path id must be a positive integer")
		return 0, false
	}
	return id, true
}
