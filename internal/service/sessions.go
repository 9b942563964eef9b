package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/training-center/internal/cache"
	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/pkg/log"
	"github.com/pribylovaa/training-center/internal/storage"
)

// issuePair signs a new pair and, with tracking on, records the refresh session.
func (s *Service) issuePair(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.sessions.issuePair"

	lg := log.From(ctx)

	pair, err := s.tokens.Issue(user.Principal(), s.now())
	if err != nil {
		lg.Error("token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !s.cfg.TrackSessions {
		return pair, nil
	}

	sess := &models.RefreshSession{
		TokenHash: hashTokenID(pair.RefreshID),
		UserID:    user.ID,
		CreatedAt: s.now().UTC(),
		ExpiresAt: pair.RefreshExpiresAt,
	}

	if err := s.storage.SaveSession(ctx, sess); err != nil {
		lg.Error("save_refresh_session_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.sessions != nil {
		entry := &cache.SessionEntry{UserID: user.ID, ExpiresAt: sess.ExpiresAt}
		if err := s.sessions.Set(ctx, sess.TokenHash, entry, sess.ExpiresAt.Sub(s.now())); err != nil {
			lg.Warn("session_cache_set_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	return pair, nil
}

// consumeSession revokes the session of a presented refresh token.
// Presenting an already revoked token is treated as reuse: every session of the user is revoked.
func (s *Service) consumeSession(ctx context.Context, claims *models.Claims) error {
	const op = "service.sessions.consumeSession"

	lg := log.From(ctx)
	hash := hashTokenID(claims.TokenID)

	if s.sessions != nil {
		entry, ok, err := s.sessions.Get(ctx, hash)
		switch {
		case err != nil:
			lg.Warn("session_cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		case ok && entry.Revoked:
			return ErrTokenRevoked
		}
	}

	revoked, err := s.storage.RevokeSession(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidToken
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !revoked {
		n, err := s.storage.RevokeUserSessions(ctx, claims.UserID)
		lg.Warn("refresh_reuse_detected",
			slog.String("op", op),
			slog.String("user_id", claims.UserID.String()),
			slog.Int64("revoked", n),
		)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		return ErrTokenRevoked
	}

	s.markCacheRevoked(ctx, op, hash)

	return nil
}

func (s *Service) markCacheRevoked(ctx context.Context, op, hash string) {
	if s.sessions == nil {
		return
	}

	if err := s.sessions.MarkRevoked(ctx, hash); err != nil {
		log.From(ctx).Warn("session_cache_revoke_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}
}

// PurgeExpiredSessions deletes refresh sessions past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	const op = "service.sessions.PurgeExpiredSessions"

	n, err := s.storage.DeleteExpiredSessions(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// hashTokenID is what the database stores instead of the jti.
func hashTokenID(jti string) string {
	sum := sha256.Sum256([]byte(jti))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
