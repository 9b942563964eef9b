// Package service holds the business logic of the training-center API:
// credential checks and token issuance, optional refresh session tracking,
// profiles and avatars, admin user management and course comments.
//
// A Service keeps no request state and is safe for concurrent use as long as
// the storages passed to it are. Errors are returned wrapped around the
// sentinels below and mapped to HTTP by internal/errors.
package service

import (
	"errors"
	"time"

	"github.com/pribylovaa/training-center/internal/cache"
	"github.com/pribylovaa/training-center/internal/config"
	"github.com/pribylovaa/training-center/internal/storage"
	"github.com/pribylovaa/training-center/internal/tokens"
)

var (
	// ErrInvalidCredentials: unknown identifier, wrong password or empty input. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled: the credentials are right but the account is inactive. HTTP 403.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrForbidden: the identity is known but its role is insufficient. HTTP 403.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidToken: malformed, badly signed or unknown token. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired: the token is past its exp. HTTP 401.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked: a tracked refresh token that was already used or logged out. HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrEmailTaken: registration with an e-mail that already exists. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")
	// ErrInvalidEmail: the e-mail does not parse. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword: the password fails the complexity policy. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")
	// ErrEmptyPassword: no password given. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrInvalidArgument: any other validation failure. HTTP 400.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound: the entity does not exist. HTTP 404.
	ErrNotFound = errors.New("not found")
	// ErrParentNotFound: a reply to a missing comment. HTTP 404.
	ErrParentNotFound = errors.New("parent comment not found")
	// ErrMaxDepthExceeded: a reply nested deeper than allowed. HTTP 400.
	ErrMaxDepthExceeded = errors.New("max depth exceeded")
	// ErrInvalidCursor: a broken page token. HTTP 400.
	ErrInvalidCursor = errors.New("invalid page token")
	// ErrUnavailable: the optional backend for this operation is not configured. HTTP 503.
	ErrUnavailable = errors.New("backend not configured")
)

// Service describes the business logic.
type Service struct {
	storage  storage.Storage
	tokens   *tokens.Manager
	cfg      config.AuthConfig
	sessions cache.SessionCache     // nil if redis is not configured
	avatars  storage.AvatarStorage  // nil if s3 is not configured
	comments storage.CommentStorage // nil if mongo is not configured
	now      func() time.Time
}

// New creates a Service.
func New(st storage.Storage, tm *tokens.Manager, cfg config.AuthConfig) *Service {
	return &Service{
		storage: st,
		tokens:  tm,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetSessionCache enables the Redis mirror of refresh sessions.
func (s *Service) SetSessionCache(c cache.SessionCache) {
	s.sessions = c
}

// SetAvatarStorage enables avatar uploads.
func (s *Service) SetAvatarStorage(a storage.AvatarStorage) {
	s.avatars = a
}

// SetCommentStorage enables course comments.
func (s *Service) SetCommentStorage(c storage.CommentStorage) {
	s.comments = c
}
