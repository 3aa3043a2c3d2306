package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

// Service resolves the subject behind an HTTP request. Cookie sessions are
// checked first, then bearer tokens, so browser and bot clients share the
// same gates.
type Service struct {
	directory UserDirectory
	tokens    TokenVerifier
	logger    *slog.Logger
}

// NewService constructs a Service. tokens may be nil when bearer auth is
// disabled.
func NewService(directory UserDirectory, tokens TokenVerifier, logger *slog.Logger) *Service {
	return &Service{directory: directory, tokens: tokens, logger: logger}
}

// ResolveSubject determines the subject for the request. The second return
// reports the loading state: the request names a user but the snapshot
// could not be fetched right now. An unknown or deleted user resolves to
// anonymous, not loading.
func (s *Service) ResolveSubject(ctx context.Context, r *http.Request) (*authz.Subject, bool) {
	userID := s.requestUserID(ctx, r)
	if userID == 0 {
		return nil, false
	}
	subject, err := s.directory.Subject(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, false
		}
		if s.logger != nil {
			s.logger.Warn("subject snapshot fetch failed", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil, true
	}
	return subject, false
}

func (s *Service) requestUserID(ctx context.Context, r *http.Request) int64 {
	if sess := shared.SessionFromContext(ctx); sess != nil && sess.User() != 0 {
		return sess.User()
	}
	if s.tokens == nil {
		return 0
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return 0
	}
	userID, err := s.tokens.Verify(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
	if err != nil {
		// Expired and malformed tokens degrade to anonymous so gates
		// answer with a login challenge rather than a server error.
		return 0
	}
	return userID
}
