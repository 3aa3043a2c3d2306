package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropzone-hq/dropzone/internal/aircraft"
	"github.com/dropzone-hq/dropzone/internal/audit"
	"github.com/dropzone-hq/dropzone/internal/auth"
	"github.com/dropzone-hq/dropzone/internal/dashboard"
	"github.com/dropzone-hq/dropzone/internal/dictionaries"
	"github.com/dropzone-hq/dropzone/internal/equipment"
	"github.com/dropzone-hq/dropzone/internal/files"
	"github.com/dropzone-hq/dropzone/internal/jumps"
	"github.com/dropzone-hq/dropzone/internal/jumptypes"
	"github.com/dropzone-hq/dropzone/internal/loads"
	"github.com/dropzone-hq/dropzone/internal/manifests"
	"github.com/dropzone-hq/dropzone/internal/observability"
	"github.com/dropzone-hq/dropzone/internal/rbac"
	"github.com/dropzone-hq/dropzone/internal/shared"
	"github.com/dropzone-hq/dropzone/internal/tandems"
	"github.com/dropzone-hq/dropzone/internal/users"
	"github.com/dropzone-hq/dropzone/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Pool           *pgxpool.Pool

	AuthHandler         *auth.Handler
	UsersHandler        *users.Handler
	DictionariesHandler *dictionaries.Handler
	AircraftHandler     *aircraft.Handler
	JumpTypesHandler    *jumptypes.Handler
	EquipmentHandler    *equipment.Handler
	LoadsHandler        *loads.Handler
	JumpsHandler        *jumps.Handler
	ManifestsHandler    *manifests.Handler
	TandemsHandler      *tandems.Handler
	DashboardHandler    *dashboard.Handler
	FilesHandler        *files.Handler
	AuditHandler        *audit.Handler
	JobsHandler         *jobs.Handler
	PermissionsHandler  *rbac.PermissionsHandler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router for the dropzone API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params.Pool))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Get("/config", params.AuthHandler.PublicConfig)
		r.Route("/users", func(r chi.Router) {
			params.UsersHandler.MountRoutes(r)
			if params.PermissionsHandler != nil {
				params.PermissionsHandler.MountRoutes(r)
			}
		})
		r.Route("/dictionaries", params.DictionariesHandler.MountRoutes)
		r.Route("/aircraft", params.AircraftHandler.MountRoutes)
		r.Route("/jump-types", params.JumpTypesHandler.MountRoutes)
		r.Route("/equipment", params.EquipmentHandler.MountRoutes)
		r.Route("/loads", func(r chi.Router) {
			params.LoadsHandler.MountRoutes(r)
			params.JumpsHandler.MountLoadRoutes(r)
		})
		r.Route("/jumps", params.JumpsHandler.MountRoutes)
		// The board view and its assign/remove actions share /manifest;
		// sign-up CRUD lives under /manifests.
		r.Route("/manifest", func(r chi.Router) {
			params.ManifestsHandler.MountBoardRoutes(r)
			params.JumpsHandler.MountAssignmentRoutes(r)
		})
		r.Route("/manifests", params.ManifestsHandler.MountRoutes)
		r.Route("/tandems", params.TandemsHandler.MountRoutes)
		r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		r.Route("/files", params.FilesHandler.MountRoutes)
		r.Route("/audit", params.AuditHandler.MountRoutes)
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

// healthHandler reports liveness, pinging the database when a pool is
// available.
func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
	}
}
