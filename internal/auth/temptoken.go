package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

const tempTokenPrefix = "temp_token:"

// TempTokenStore keeps single-use login tokens in Redis. A token is minted
// by an authenticated session and consumed exactly once, typically to hand
// a login over to another surface (the Telegram bot deep link).
type TempTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTempTokenStore builds a TempTokenStore.
func NewTempTokenStore(client *redis.Client, ttl time.Duration) *TempTokenStore {
	return &TempTokenStore{client: client, ttl: ttl}
}

// Mint creates a fresh token for the user.
func (s *TempTokenStore) Mint(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	key := tempTokenPrefix + token
	if err := s.client.Set(ctx, key, strconv.FormatInt(userID, 10), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store temp token: %w", err)
	}
	return token, nil
}

// Exchange consumes the token. GETDEL guarantees single use even under
// concurrent exchange attempts.
func (s *TempTokenStore) Exchange(ctx context.Context, token string) (int64, error) {
	value, err := s.client.GetDel(ctx, tempTokenPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("auth: temp token unknown or used: %w", shared.ErrInvalidCredentials)
		}
		return 0, fmt.Errorf("auth: exchange temp token: %w", err)
	}
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("auth: corrupt temp token payload: %w", shared.ErrInvalidCredentials)
	}
	return userID, nil
}
