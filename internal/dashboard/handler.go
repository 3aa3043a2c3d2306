package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropzone-hq/dropzone/internal/platform/httpx"
)

// Handler exposes the public dashboard. No auth: the endpoint feeds the
// hangar screen and the public site.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.today)
}

func (h *Handler) today(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Today(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}
