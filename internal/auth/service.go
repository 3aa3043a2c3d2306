package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/shared"
	"github.com/dropzone-hq/dropzone/internal/users"
)

// Service wraps authentication business rules.
type Service struct {
	users    users.RepositoryPort
	telegram *TelegramVerifier
	tokens   *TokenManager
	temp     *TempTokenStore
}

// NewService constructs a new Service.
func NewService(userRepo users.RepositoryPort, telegram *TelegramVerifier, tokens *TokenManager, temp *TempTokenStore) *Service {
	return &Service{users: userRepo, telegram: telegram, tokens: tokens, temp: temp}
}

// AuthenticateTelegram verifies the widget payload and returns the member,
// creating the account on first login. New members start with the
// tandem_jumper role; everything beyond that is granted by staff.
func (s *Service) AuthenticateTelegram(ctx context.Context, req TelegramAuthRequest) (*users.User, error) {
	if err := s.telegram.Verify(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByTelegramID(ctx, req.ID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("auth: lookup telegram user: %w", err)
		}
		return s.registerTelegramUser(ctx, req)
	}

	// Refresh the profile fields Telegram owns.
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Username = optional(req.Username)
	user.AvatarURL = optional(req.PhotoURL)
	if err := s.users.Update(ctx, *user); err != nil {
		return nil, fmt.Errorf("auth: refresh telegram profile: %w", err)
	}
	return s.users.Get(ctx, user.ID)
}

func (s *Service) registerTelegramUser(ctx context.Context, req TelegramAuthRequest) (*users.User, error) {
	telegramID := req.ID
	id, err := s.users.Create(ctx, users.User{
		TelegramID: &telegramID,
		Username:   optional(req.Username),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		AvatarURL:  optional(req.PhotoURL),
		Roles:      []authz.Role{authz.RoleTandemJumper},
	})
	if err != nil {
		return nil, fmt.Errorf("auth: register telegram user: %w", err)
	}
	return s.users.Get(ctx, id)
}

// AuthenticateLocal validates username/password credentials for bootstrap
// accounts. Every failure looks identical to the caller.
func (s *Service) AuthenticateLocal(ctx context.Context, username, password string) (*users.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if user.PasswordHash == nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// IssueAccessToken signs a bearer token for the user.
func (s *Service) IssueAccessToken(userID int64) (string, error) {
	return s.tokens.Issue(userID)
}

// AccessTokenTTL reports how long issued bearer tokens stay valid.
func (s *Service) AccessTokenTTL() time.Duration {
	return s.tokens.TTL()
}

// MintTempToken creates a single-use handover token.
func (s *Service) MintTempToken(ctx context.Context, userID int64) (string, error) {
	return s.temp.Mint(ctx, userID)
}

// ExchangeTempToken consumes a handover token and returns its user.
func (s *Service) ExchangeTempToken(ctx context.Context, token string) (*users.User, error) {
	userID, err := s.temp.Exchange(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.users.Get(ctx, userID)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
