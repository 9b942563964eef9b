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

const userColumns = `id, email, display_name, role, password_hash, active, avatar_key, avatar_url, created_at, updated_at`

// SaveUser inserts a new user.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users(id, email, display_name, role, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		string(user.Role),
		user.PasswordHash,
		user.Active,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapErr(op, err)
	}

	return nil
}

// UserByEmail finds a user by email (case-insensitive column).
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return scanUser(op, s.db.QueryRow(ctx, query, email))
}

// UserByID finds a user by id.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUser(op, s.db.QueryRow(ctx, query, id))
}

// UpdateUser applies the non-nil fields of patch.
func (s *Storage) UpdateUser(ctx context.Context, id uuid.UUID, patch models.UserPatch) (*models.User, error) {
	const op = "storage.postgres.UpdateUser"

	var role *string
	if patch.Role != nil {
		r := string(*patch.Role)
		role = &r
	}

	query := `
		UPDATE users
		SET role = COALESCE($2::text, role),
		    active = COALESCE($3::boolean, active),
		    display_name = COALESCE($4::text, display_name),
		    updated_at = $5
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(op, s.db.QueryRow(ctx, query, id, role, patch.Active, patch.DisplayName, time.Now().UTC()))
}

// SetAvatar stores a confirmed avatar.
func (s *Storage) SetAvatar(ctx context.Context, id uuid.UUID, key, url string) (*models.User, error) {
	const op = "storage.postgres.SetAvatar"

	query := `
		UPDATE users
		SET avatar_key = $2, avatar_url = $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(op, s.db.QueryRow(ctx, query, id, key, url, time.Now().UTC()))
}

func scanUser(op string, row pgx.Row) (*models.User, error) {
	var (
		user models.User
		role string
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&role,
		&user.PasswordHash,
		&user.Active,
		&user.AvatarKey,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, mapErr(op, err)
	}

	user.Role = models.Role(role)
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()

	return &user, nil
}
