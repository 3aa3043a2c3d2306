package files

import (
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropzone-hq/dropzone/internal/platform/httpx"
	"github.com/dropzone-hq/dropzone/internal/rbac"
)

// Handler exposes the upload and delete endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes registers the /files subtree. Any signed-in member may
// upload; ownership of the resulting URL is tracked by the record that
// references it.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuth())
		r.Post("/upload/image", h.uploadImage)
		r.Post("/upload/document", h.uploadDocument)
		r.Post("/upload/multiple", h.uploadMultiple)
		r.Delete("/file", h.deleteFile)
	})
}

func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	up, closeFile, ok := h.formFile(w, r)
	if !ok {
		return
	}
	defer closeFile()

	result, err := h.service.UploadImage(r.Context(), up)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	up, closeFile, ok := h.formFile(w, r)
	if !ok {
		return
	}
	defer closeFile()

	result, err := h.service.UploadDocument(r.Context(), up)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) uploadMultiple(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "expected multipart form data")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", `multipart field "files" is required`)
		return
	}

	ups := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		defer f.Close()
		ups = append(ups, uploadFromHeader(fh, f))
	}

	result, err := h.service.UploadBatch(r.Context(), ups)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	fileURL := r.URL.Query().Get("file_url")
	if fileURL == "" {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", "file_url query parameter is required")
		return
	}

	if err := h.service.DeleteByURL(r.Context(), fileURL); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "File deleted successfully")
}

// formFile pulls the single "file" part out of the request. The byte cap
// leaves headroom over MaxFileSize so oversized files reach the service
// and fail with its message rather than a truncated-body error.
func (h *Handler) formFile(w http.ResponseWriter, r *http.Request) (Upload, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFileSize+1<<20)
	f, fh, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", `multipart field "file" is required`)
		return Upload{}, nil, false
	}
	return uploadFromHeader(fh, f), func() { _ = f.Close() }, true
}

func uploadFromHeader(fh *multipart.FileHeader, f multipart.File) Upload {
	return Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}
}
