package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

func TestTempTokenSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewTempTokenStore(client, 30*time.Minute)
	ctx := context.Background()

	token, err := store.Mint(ctx, 5)
	require.NoError(t, err)

	userID, err := store.Exchange(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(5), userID)

	_, err = store.Exchange(ctx, token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestTempTokenExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewTempTokenStore(client, time.Minute)
	ctx := context.Background()

	token, err := store.Mint(ctx, 5)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Exchange(ctx, token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestTempTokenUnknownRejected(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewTempTokenStore(client, time.Minute)

	_, err := store.Exchange(context.Background(), "never-minted")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
