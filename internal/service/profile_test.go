package service

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/storage"
	"github.com/pribylovaa/training-center/mocks"
)

func TestMe_NotFound(t *testing.T) {
	t.Parallel()

	svc, st := newSvc(t, false)
	id := uuid.New()
	st.EXPECT().UserByID(gomock.Any(), id).Return(nil, storage.ErrNotFound)

	_, err := svc.Me(context.Background(), id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	svc, st := newSvc(t, false)
	id := uuid.New()

	_, err := svc.UpdateProfile(context.Background(), id, "   ")
	require.ErrorIs(t, err, ErrInvalidArgument)

	st.EXPECT().UpdateUser(gomock.Any(), id, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, p models.UserPatch) (*models.User, error) {
			require.NotNil(t, p.DisplayName)
			require.Equal(t, "Ada L.", *p.DisplayName)
			require.Nil(t, p.Role)
			require.Nil(t, p.Active)
			return &models.User{ID: id, DisplayName: *p.DisplayName}, nil
		})

	u, err := svc.UpdateProfile(context.Background(), id, "  Ada L. ")
	require.NoError(t, err)
	require.Equal(t, "Ada L.", u.DisplayName)
}

func TestAvatar_Unavailable(t *testing.T) {
	t.Parallel()

	svc, _ := newSvc(t, false)

	_, err := svc.AvatarPresign(context.Background(), uuid.New(), "image/png", 10)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.AvatarConfirm(context.Background(), uuid.New(), "k")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestAvatarPresign_MapsInvalidArgument(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc, _ := newSvc(t, false)
	av := mocks.NewMockAvatarStorage(ctrl)
	svc.SetAvatarStorage(av)

	id := uuid.New()
	av.EXPECT().AvatarUploadURL(gomock.Any(), id, "image/gif", int64(10)).Return(nil, storage.ErrInvalidArgument)

	_, err := svc.AvatarPresign(context.Background(), id, " image/gif ", 10)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAvatarConfirm_OK(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc, st := newSvc(t, false)
	av := mocks.NewMockAvatarStorage(ctrl)
	svc.SetAvatarStorage(av)

	id := uuid.New()
	key := "avatars/" + id.String() + "/a.png"
	url := "http://cdn.local/" + key

	gomock.InOrder(
		av.EXPECT().CheckAvatarUpload(gomock.Any(), id, key).Return(url, nil),
		st.EXPECT().SetAvatar(gomock.Any(), id, key, url).Return(&models.User{ID: id, AvatarKey: key, AvatarURL: url}, nil),
	)

	u, err := svc.AvatarConfirm(context.Background(), id, key)
	require.NoError(t, err)
	require.Equal(t, url, u.AvatarURL)

	_, err = svc.AvatarConfirm(context.Background(), id, " ")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAvatarConfirm_MissingObject(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	svc, _ := newSvc(t, false)
	av := mocks.NewMockAvatarStorage(ctrl)
	svc.SetAvatarStorage(av)

	av.EXPECT().CheckAvatarUpload(gomock.Any(), gomock.Any(), gomock.Any()).Return("", storage.ErrNotFound)

	_, err := svc.AvatarConfirm(context.Background(), uuid.New(), "avatars/x")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAdminUpdateUser_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newSvc(t, false)
	ctx := context.Background()
	admin := uuid.New()

	_, err := svc.AdminUpdateUser(ctx, admin, uuid.New(), models.UserPatch{})
	require.ErrorIs(t, err, ErrInvalidArgument)

	bad := models.Role("root")
	_, err = svc.AdminUpdateUser(ctx, admin, uuid.New(), models.UserPatch{Role: &bad})
	require.ErrorIs(t, err, ErrInvalidArgument)

	student := models.RoleStudent
	_, err = svc.AdminUpdateUser(ctx, admin, admin, models.UserPatch{Role: &student})
	require.ErrorIs(t, err, ErrInvalidArgument)

	off := false
	_, err = svc.AdminUpdateUser(ctx, admin, admin, models.UserPatch{Active: &off})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAdminUpdateUser_DeactivateRevokesTrackedSessions(t *testing.T) {
	t.Parallel()

	svc, st := newSvc(t, true)
	target := uuid.New()
	off := false

	gomock.InOrder(
		st.EXPECT().UpdateUser(gomock.Any(), target, gomock.Any()).
			Return(&models.User{ID: target, Role: models.RoleStudent, Active: false}, nil),
		st.EXPECT().RevokeUserSessions(gomock.Any(), target).Return(int64(2), nil),
	)

	u, err := svc.AdminUpdateUser(context.Background(), uuid.New(), target, models.UserPatch{Active: &off})
	require.NoError(t, err)
	require.False(t, u.Active)
}

func TestAdminUpdateUser_PromoteStateless(t *testing.T) {
	t.Parallel()

	svc, st := newSvc(t, false)
	target := uuid.New()
	admin := models.RoleAdmin

	st.EXPECT().UpdateUser(gomock.Any(), target, gomock.Any()).
		Return(&models.User{ID: target, Role: models.RoleAdmin, Active: true}, nil)

	u, err := svc.AdminUpdateUser(context.Background(), uuid.New(), target, models.UserPatch{Role: &admin})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, u.Role)
}

func TestAdminUpdateUser_NotFound(t *testing.T) {
	t.Parallel()

	svc, st := newSvc(t, false)
	on := true
	st.EXPECT().UpdateUser(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)

	_, err := svc.AdminUpdateUser(context.Background(), uuid.New(), uuid.New(), models.UserPatch{Active: &on})
	require.ErrorIs(t, err, ErrNotFound)
}
