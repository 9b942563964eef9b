package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/pkg/log"
	"github.com/pribylovaa/training-center/internal/storage"
)

// Me returns the current stored user.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "service.profile.Me"

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	return user, nil
}

// UpdateProfile changes the display name.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, displayName string) (*models.User, error) {
	const op = "service.profile.UpdateProfile"

	name := strings.TrimSpace(displayName)
	if name == "" || len([]rune(name)) > maxDisplayName {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	user, err := s.storage.UpdateUser(ctx, id, models.UserPatch{DisplayName: &name})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	return user, nil
}

// AvatarPresign issues a presigned PUT for a new avatar.
func (s *Service) AvatarPresign(ctx context.Context, id uuid.UUID, contentType string, contentLength int64) (*models.UploadInfo, error) {
	const op = "service.profile.AvatarPresign"

	if s.avatars == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	info, err := s.avatars.AvatarUploadURL(ctx, id, strings.TrimSpace(contentType), contentLength)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	return info, nil
}

// AvatarConfirm checks the uploaded object and stores its public URL on the user.
func (s *Service) AvatarConfirm(ctx context.Context, id uuid.UUID, key string) (*models.User, error) {
	const op = "service.profile.AvatarConfirm"

	if s.avatars == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	url, err := s.avatars.CheckAvatarUpload(ctx, id, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	user, err := s.storage.SetAvatar(ctx, id, key, url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	return user, nil
}

// AdminUpdateUser changes role and/or active flag of a user.
// An admin cannot demote or deactivate themselves. Deactivation revokes tracked sessions.
func (s *Service) AdminUpdateUser(ctx context.Context, actorID, id uuid.UUID, patch models.UserPatch) (*models.User, error) {
	const op = "service.profile.AdminUpdateUser"

	lg := log.From(ctx)

	if patch.Role == nil && patch.Active == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	if patch.Role != nil && !patch.Role.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	if actorID == id {
		if (patch.Role != nil && *patch.Role != models.RoleAdmin) || (patch.Active != nil && !*patch.Active) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
		}
	}

	user, err := s.storage.UpdateUser(ctx, id, models.UserPatch{Role: patch.Role, Active: patch.Active})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	lg.Info("user_updated_by_admin",
		slog.String("actor_id", actorID.String()),
		slog.String("user_id", id.String()),
		slog.String("role", string(user.Role)),
		slog.Bool("active", user.Active),
	)

	if s.cfg.TrackSessions && patch.Active != nil && !*patch.Active {
		n, err := s.storage.RevokeUserSessions(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		lg.Info("user_sessions_revoked", slog.String("user_id", id.String()), slog.Int64("count", n))
	}

	return user, nil
}

func mapStorageErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrInvalidArgument):
		return ErrInvalidArgument
	case errors.Is(err, storage.ErrAlreadyExists):
		return ErrEmailTaken
	case errors.Is(err, storage.ErrParentNotFound):
		return ErrParentNotFound
	case errors.Is(err, storage.ErrMaxDepthExceeded):
		return ErrMaxDepthExceeded
	case errors.Is(err, storage.ErrInvalidCursor):
		return ErrInvalidCursor
	default:
		return err
	}
}
