// Package storage declares the persistence contracts of the service.
// Implementations live in the subpackages (postgres, minio, mongo).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/training-center/internal/models"
)

var (
	// ErrNotFound is returned when a record (user, session, object, comment) is absent.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is a uniqueness violation (email, session hash).
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidArgument reports a request the backend refuses (size, type, foreign key).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidCursor is a broken page token.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrParentNotFound is a reply to a comment that does not exist.
	ErrParentNotFound = errors.New("parent not found")
	// ErrMaxDepthExceeded is a reply nested deeper than allowed.
	ErrMaxDepthExceeded = errors.New("max depth exceeded")
)

// UserStorage persists accounts.
type UserStorage interface {
	// SaveUser inserts a new user.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail finds a user by normalized email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID finds a user by id.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdateUser applies a partial update and returns the stored row.
	UpdateUser(ctx context.Context, id uuid.UUID, patch models.UserPatch) (*models.User, error)
	// SetAvatar stores the confirmed avatar key and public URL.
	SetAvatar(ctx context.Context, id uuid.UUID, key, url string) (*models.User, error)
}

// SessionStorage persists tracked refresh sessions.
type SessionStorage interface {
	// SaveSession inserts a new session.
	SaveSession(ctx context.Context, s *models.RefreshSession) error
	// SessionByHash finds a session by the hash of its jti.
	SessionByHash(ctx context.Context, hash string) (*models.RefreshSession, error)
	// RevokeSession revokes a session if it is still active.
	//	(true, nil)  the session was active and is revoked now;
	//	(false, nil) it was already revoked;
	//	(false, ErrNotFound) no such session.
	RevokeSession(ctx context.Context, hash string) (bool, error)
	// RevokeUserSessions revokes every active session of a user and returns how many.
	RevokeUserSessions(ctx context.Context, userID uuid.UUID) (int64, error)
	// DeleteExpiredSessions removes sessions that expired before now.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Storage is the relational store.
type Storage interface {
	UserStorage
	SessionStorage
	Close()
}

// AvatarStorage issues presigned uploads and confirms them.
type AvatarStorage interface {
	// AvatarUploadURL validates type and size and returns a presigned PUT.
	AvatarUploadURL(ctx context.Context, userID uuid.UUID, contentType string, contentLength int64) (*models.UploadInfo, error)
	// CheckAvatarUpload verifies the object exists and fits the limits, returning its public URL.
	CheckAvatarUpload(ctx context.Context, userID uuid.UUID, key string) (string, error)
}

// CommentStorage persists course comments.
type CommentStorage interface {
	// CreateComment inserts a root comment or a reply (ParentID set).
	CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error)
	// CommentByID returns one comment.
	CommentByID(ctx context.Context, id string) (*models.Comment, error)
	// DeleteComment soft-deletes a comment.
	DeleteComment(ctx context.Context, id string) error
	// ListByCourse lists root comments of a course, newest first.
	ListByCourse(ctx context.Context, courseID string, p models.ListParams) (*models.CommentPage, error)
	// ListReplies lists direct replies of a comment, oldest first.
	ListReplies(ctx context.Context, parentID string, p models.ListParams) (*models.CommentPage, error)
}
