package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/storage"
)

// SaveSession inserts a tracked refresh session.
func (s *Storage) SaveSession(ctx context.Context, sess *models.RefreshSession) error {
	const op = "storage.postgres.SaveSession"

	query := `
        INSERT INTO refresh_sessions(token_hash, user_id, created_at, expires_at, revoked)
        VALUES ($1, $2, $3, $4, $5)
    `

	_, err := s.db.Exec(ctx, query,
		sess.TokenHash,
		sess.UserID,
		sess.CreatedAt,
		sess.ExpiresAt,
		sess.Revoked,
	)
	if err != nil {
		return mapErr(op, err)
	}

	return nil
}

// SessionByHash finds a session by hash.
func (s *Storage) SessionByHash(ctx context.Context, hash string) (*models.RefreshSession, error) {
	const op = "storage.postgres.SessionByHash"

	query := `
        SELECT token_hash, user_id, created_at, expires_at, revoked
        FROM refresh_sessions
        WHERE token_hash = $1
    `

	var sess models.RefreshSession
	err := s.db.QueryRow(ctx, query, hash).Scan(
		&sess.TokenHash,
		&sess.UserID,
		&sess.CreatedAt,
		&sess.ExpiresAt,
		&sess.Revoked,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.ExpiresAt = sess.ExpiresAt.UTC()

	return &sess, nil
}

// RevokeSession revokes a session if it is still active.
// Of concurrent callers for one hash only one observes (true, nil).
func (s *Storage) RevokeSession(ctx context.Context, hash string) (bool, error) {
	const op = "storage.postgres.RevokeSession"

	const upd = `
		UPDATE refresh_sessions
		SET revoked = TRUE
		WHERE token_hash = $1 AND revoked = FALSE
		RETURNING user_id
	`

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, upd, hash).Scan(&userID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	const sel = `SELECT revoked FROM refresh_sessions WHERE token_hash = $1`

	var revoked bool
	err = s.db.QueryRow(ctx, sel, hash).Scan(&revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

// RevokeUserSessions revokes all active sessions of a user.
func (s *Storage) RevokeUserSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "storage.postgres.RevokeUserSessions"

	tag, err := s.db.Exec(ctx,
		`UPDATE refresh_sessions SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

// DeleteExpiredSessions removes expired sessions.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredSessions"

	tag, err := s.db.Exec(ctx, `DELETE FROM refresh_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}
