package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/storage"
)

func newUser(email string) *models.User {
	now := time.Now().UTC()
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  "Student",
		Role:         models.RoleStudent,
		PasswordHash: "hash",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestIntegration_SaveUser_And_Lookup_OK(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	u := newUser("User@Example.Com")
	require.NoError(t, st.SaveUser(ctx, u))

	// citext: lookup is case-insensitive.
	byEmail, err := st.UserByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
	require.Equal(t, models.RoleStudent, byEmail.Role)
	require.True(t, byEmail.Active)
	require.WithinDuration(t, u.CreatedAt, byEmail.CreatedAt, time.Second)

	byID, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "Student", byID.DisplayName)
	require.Equal(t, "hash", byID.PasswordHash)
}

func TestIntegration_SaveUser_DuplicateEmail(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, st.SaveUser(ctx, newUser("dup@example.com")))

	err := st.SaveUser(ctx, newUser("DUP@example.com"))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_SaveUser_BadRole(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	u := newUser("role@example.com")
	u.Role = "root"

	err := st.SaveUser(context.Background(), u)
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestIntegration_UserLookup_NotFound(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	_, err := st.UserByEmail(context.Background(), "missing@example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UserByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_UpdateUser_Partial(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	u := newUser("patch@example.com")
	require.NoError(t, st.SaveUser(ctx, u))

	admin := models.RoleAdmin
	got, err := st.UpdateUser(ctx, u.ID, models.UserPatch{Role: &admin})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, got.Role)
	require.True(t, got.Active)
	require.Equal(t, "Student", got.DisplayName)

	inactive := false
	name := "Renamed"
	got, err = st.UpdateUser(ctx, u.ID, models.UserPatch{Active: &inactive, DisplayName: &name})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, got.Role)
	require.False(t, got.Active)
	require.Equal(t, "Renamed", got.DisplayName)

	_, err = st.UpdateUser(ctx, uuid.New(), models.UserPatch{Active: &inactive})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_SetAvatar(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	u := newUser("avatar@example.com")
	require.NoError(t, st.SaveUser(ctx, u))

	got, err := st.SetAvatar(ctx, u.ID, "avatars/k.png", "https://cdn/avatars/k.png")
	require.NoError(t, err)
	require.Equal(t, "avatars/k.png", got.AvatarKey)
	require.Equal(t, "https://cdn/avatars/k.png", got.AvatarURL)
}

func TestIntegration_UserByID_ContextCanceled(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.UserByID(ctx, uuid.New())
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}
