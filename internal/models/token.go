package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPair is issued on login, registration and refresh.
//   - AccessToken: short-lived JWT for API calls;
//   - RefreshToken: longer-lived JWT used only against the refresh endpoint;
//   - RefreshID: jti of the refresh token, used by session tracking.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Claims is the decoded content of a verified token.
type Claims struct {
	UserID      uuid.UUID
	Role        Role
	DisplayName string
	TokenID     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}
