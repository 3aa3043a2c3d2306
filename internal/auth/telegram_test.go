package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropzone-hq/dropzone/internal/shared"
	_ "github.com/dropzone-hq/dropzone/testing"
)

func signTelegram(botToken string, req TelegramAuthRequest) string {
	pairs := []string{
		"auth_date=" + strconv.FormatInt(req.AuthDate, 10),
		"id=" + strconv.FormatInt(req.ID, 10),
	}
	if req.FirstName != "" {
		pairs = append(pairs, "first_name="+req.FirstName)
	}
	if req.LastName != "" {
		pairs = append(pairs, "last_name="+req.LastName)
	}
	if req.Username != "" {
		pairs = append(pairs, "username="+req.Username)
	}
	if req.PhotoURL != "" {
		pairs = append(pairs, "photo_url="+req.PhotoURL)
	}
	sort.Strings(pairs)
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(pairs, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestTelegramVerifyAcceptsSignedPayload(t *testing.T) {
	v := NewTelegramVerifier("123456:bot-secret")
	v.now = func() time.Time { return time.Unix(1700000600, 0) }

	req := TelegramAuthRequest{
		ID:        42,
		FirstName: "Anna",
		Username:  "annab",
		AuthDate:  1700000000,
	}
	req.Hash = signTelegram("123456:bot-secret", req)

	require.NoError(t, v.Verify(req))
}

func TestTelegramVerifyRejectsTamperedPayload(t *testing.T) {
	v := NewTelegramVerifier("123456:bot-secret")
	v.now = func() time.Time { return time.Unix(1700000600, 0) }

	req := TelegramAuthRequest{ID: 42, FirstName: "Anna", AuthDate: 1700000000}
	req.Hash = signTelegram("123456:bot-secret", req)
	req.FirstName = "Mallory"

	err := v.Verify(req)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestTelegramVerifyRejectsStalePayload(t *testing.T) {
	v := NewTelegramVerifier("123456:bot-secret")
	v.now = func() time.Time { return time.Unix(1700000000, 0).Add(25 * time.Hour) }

	req := TelegramAuthRequest{ID: 42, AuthDate: 1700000000}
	req.Hash = signTelegram("123456:bot-secret", req)

	err := v.Verify(req)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestTelegramVerifySkippedWithoutBotToken(t *testing.T) {
	v := NewTelegramVerifier("")
	require.NoError(t, v.Verify(TelegramAuthRequest{ID: 42, AuthDate: 1}))
}
