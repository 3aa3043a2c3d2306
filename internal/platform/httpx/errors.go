// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Rule
// violations surface their own safe wording; everything else is logged and
// collapses to a generic 500 so internals never leak.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ue *shared.UserError
	switch {
	case errors.As(err, &ue):
		Problem(w, http.StatusBadRequest, "Bad Request", ue.Message)
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	default:
		if logger != nil {
			logger.Error("request failed", "error", err)
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
