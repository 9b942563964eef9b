package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshSession is a tracked refresh token. Only the sha256 hash of its jti is stored.
type RefreshSession struct {
	TokenHash string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}
