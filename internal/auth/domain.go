// Package auth handles how a dropzone member proves who they are: the
// Telegram Login Widget for regular members, username/password for
// bootstrap admin accounts, and short-lived tokens for bot clients. Who a
// member may act as, once known, is the authz package's business.
package auth

import "github.com/dropzone-hq/dropzone/internal/users"

// TelegramAuthRequest mirrors the Telegram Login Widget payload.
type TelegramAuthRequest struct {
	ID        int64  `json:"id" validate:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
	AuthDate  int64  `json:"auth_date" validate:"required"`
	Hash      string `json:"hash"`
}

// LoginRequest carries local account credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ExchangeRequest consumes a single-use temp token.
type ExchangeRequest struct {
	Token string `json:"token" validate:"required"`
}

// SessionResponse answers every successful login. The cookie session is
// set alongside; the bearer token serves clients that cannot hold cookies.
type SessionResponse struct {
	User        *users.User `json:"user"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	CSRFToken   string      `json:"csrf_token,omitempty"`
}
