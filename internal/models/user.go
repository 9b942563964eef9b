// Package models holds the domain entities shared by the service, storage
// and transport layers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role embedded in access tokens.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// User is a stored account. Users are never deleted, only deactivated.
type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	Role         Role
	PasswordHash string
	Active       bool
	AvatarKey    string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the identity that tokens are issued for.
func (u *User) Principal() Principal {
	return Principal{
		ID:          u.ID,
		Role:        u.Role,
		DisplayName: u.DisplayName,
	}
}

// Principal is the authenticated identity a token represents.
type Principal struct {
	ID          uuid.UUID
	Role        Role
	DisplayName string
}

// UserPatch is a partial admin update; nil fields are left untouched.
type UserPatch struct {
	Role        *Role
	Active      *bool
	DisplayName *string
}
