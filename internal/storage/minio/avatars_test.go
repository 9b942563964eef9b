package minio

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEndpoint(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		host   string
		secure bool
	}{
		{"http://localhost:9000", "localhost:9000", false},
		{"https://s3.example.com", "s3.example.com", true},
		{"localhost:9000", "localhost:9000", false},
		{" minio:9000/ ", "minio:9000", false},
		{"", "", false},
	}

	for _, tc := range cases {
		host, secure := normalizeEndpoint(tc.in)
		require.Equal(t, tc.host, host, tc.in)
		require.Equal(t, tc.secure, secure, tc.in)
	}
}

func TestOwnsKey(t *testing.T) {
	t.Parallel()

	uid := uuid.New()
	require.True(t, ownsKey(uid, "avatars/"+uid.String()+"/a.png"))
	require.False(t, ownsKey(uid, "avatars/"+uuid.NewString()+"/a.png"))
	require.False(t, ownsKey(uid, "avatars/"+uid.String()+"/"))
	require.False(t, ownsKey(uid, "avatars/"+uid.String()+"/../x.png"))
	require.False(t, ownsKey(uid, "other/"+uid.String()+"/a.png"))
}

func TestPublicURL_And_Ext(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", publicURL("", "avatars/k"))
	require.Equal(t, "http://cdn.local/avatars/k", publicURL("http://cdn.local", "avatars/k"))
	require.Equal(t, "http://cdn.local/avatars/k", publicURL("http://cdn.local/", "avatars/k"))

	require.Equal(t, ".jpg", extFor("image/jpeg"))
	require.Equal(t, ".png", extFor("image/png"))
	require.Equal(t, ".webp", extFor("image/webp"))
	require.Equal(t, "", extFor("application/octet-stream"))
}
