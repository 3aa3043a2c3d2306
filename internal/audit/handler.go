package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/dropzone-hq/dropzone/internal/platform/httpx"
	"github.com/dropzone-hq/dropzone/internal/rbac"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
)

// Handler exposes the admin audit trail.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes registers the /audit subtree. Exports are rate limited per
// admin because each one runs an unindexed range scan.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.AdminOnly())
		r.Get("/", h.list)
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(exportRateLimit, exportRateWindow,
				httprate.WithKeyFuncs(exportRateKey)))
			r.Get("/export.csv", h.export)
		})
	})
}

func exportRateKey(r *http.Request) (string, error) {
	if subject := rbac.SubjectFromContext(r.Context()); subject != nil {
		return "user:" + strconv.FormatInt(subject.ID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}

	entries, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}

	data, err := h.service.ExportCSV(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit_logs.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseListRequest(r *http.Request) (ListRequest, error) {
	q := r.URL.Query()
	req := ListRequest{
		Entity:   q.Get("entity"),
		EntityID: q.Get("entity_id"),
		Action:   q.Get("action"),
	}

	if raw := q.Get("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return req, shared.Invalid("actor_id must be a positive integer")
		}
		req.ActorID = id
	}
	if raw := q.Get("start_date"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return req, shared.Invalid("start_date must be YYYY-MM-DD")
		}
		req.From = &from
	}
	if raw := q.Get("end_date"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return req, shared.Invalid("end_date must be YYYY-MM-DD")
		}
		end := to.Add(24*time.Hour - time.Nanosecond)
		req.To = &end
	}
	req.Limit, _ = strconv.Atoi(q.Get("limit"))
	req.Offset, _ = strconv.Atoi(q.Get("offset"))
	return req, nil
}
