package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dropzone-hq/dropzone/internal/platform/httpx"
	"github.com/dropzone-hq/dropzone/internal/rbac"
	"github.com/dropzone-hq/dropzone/internal/shared"
	"github.com/dropzone-hq/dropzone/internal/users"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	rbac           rbac.Middleware
	validator      *validator.Validate
	botUsername    string
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, rbacMW rbac.Middleware, botUsername string) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		rbac:           rbacMW,
		validator:      validator.New(),
		botUsername:    botUsername,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/telegram", h.telegramLogin)
	r.Post("/login", h.localLogin)
	r.Post("/token/temp/exchange", h.exchangeTempToken)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuth())
		r.Get("/csrf", h.csrfToken)
		r.Post("/token/temp", h.mintTempToken)
		r.Post("/logout", h.logout)
	})
}

// PublicConfig answers the unauthenticated client bootstrap request.
func (h *Handler) PublicConfig(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"telegram_bot_username": h.botUsername})
}

func (h *Handler) telegramLogin(w http.ResponseWriter, r *http.Request) {
	var req TelegramAuthRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	user, err := h.service.AuthenticateTelegram(r.Context(), req)
	if err != nil {
		h.logger.Warn("telegram login rejected", slog.Int64("telegram_id", req.ID), slog.Any("error", err))
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.establishSession(w, r, user)
}

func (h *Handler) localLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	user, err := h.service.AuthenticateLocal(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.establishSession(w, r, user)
}

func (h *Handler) mintTempToken(w http.ResponseWriter, r *http.Request) {
	subject := rbac.SubjectFromContext(r.Context())
	token, err := h.service.MintTempToken(r.Context(), subject.ID)
	if err != nil {
		h.logger.Error("mint temp token", slog.Any("error", err))
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) exchangeTempToken(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	user, err := h.service.ExchangeTempToken(r.Context(), req.Token)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.establishSession(w, r, user)
}

// csrfToken re-issues the session's CSRF token to clients that lost it,
// typically after a page reload.
func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	httpx.Message(w, http.StatusOK, "Logged out")
}

// establishSession binds the cookie session to the user and answers with
// the bearer token plus the CSRF token cookie clients must echo.
func (h *Handler) establishSession(w http.ResponseWriter, r *http.Request, user *users.User) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetUser(user.ID)

	// Rotate rather than reuse: a token minted for the anonymous session
	// must not stay valid once the session names a user.
	csrfToken, err := h.csrfManager.RotateToken(r.Context(), sess)
	if err != nil {
		h.logger.Warn("rotate csrf token", slog.Any("error", err))
	}
	accessToken, err := h.service.IssueAccessToken(user.ID)
	if err != nil {
		h.logger.Error("issue access token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	httpx.JSON(w, http.StatusOK, SessionResponse{
		User:        user,
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.service.AccessTokenTTL().Seconds()),
		CSRFToken:   csrfToken,
	})
}
