package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/training-center/internal/config"
	"github.com/pribylovaa/training-center/internal/models"
)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-test-secret",
		RefreshSecret:   "unit-test-refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "training-center",
		Audience:        []string{"training-center-web"},
	}
}

func testPrincipal() models.Principal {
	return models.Principal{ID: uuid.New(), Role: models.RoleAdmin, DisplayName: "Ada"}
}

func TestIssue_ParseAccess_RoundTrip(t *testing.T) {
	t.Parallel()

	m := New(testAuthCfg())
	p := testPrincipal()
	now := time.Now()

	pair, err := m.Issue(p, now)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEmpty(t, pair.RefreshID)
	require.WithinDuration(t, now.Add(15*time.Minute), pair.AccessExpiresAt, time.Second)
	require.WithinDuration(t, now.Add(24*time.Hour), pair.RefreshExpiresAt, time.Second)

	c, err := m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, p.ID, c.UserID)
	require.Equal(t, p.Role, c.Role)
	require.Equal(t, "Ada", c.DisplayName)
	require.WithinDuration(t, now, c.IssuedAt, time.Second)
}

func TestParseAccess_Idempotent(t *testing.T) {
	t.Parallel()

	m := New(testAuthCfg())
	pair, err := m.Issue(testPrincipal(), time.Now())
	require.NoError(t, err)

	first, err := m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	second, err := m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestParseRefresh_CarriesJTI(t *testing.T) {
	t.Parallel()

	m := New(testAuthCfg())
	p := testPrincipal()
	pair, err := m.Issue(p, time.Now())
	require.NoError(t, err)

	c, err := m.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, p.ID, c.UserID)
	require.Equal(t, pair.RefreshID, c.TokenID)
	require.Empty(t, c.DisplayName)
}

func TestParse_TypeConfusion_Rejected(t *testing.T) {
	t.Parallel()

	// Same secret for both kinds, so only the typ claim tells them apart.
	cfg := testAuthCfg()
	cfg.RefreshSecret = ""
	m := New(cfg)

	pair, err := m.Issue(testPrincipal(), time.Now())
	require.NoError(t, err)

	_, err = m.ParseAccess(pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ParseRefresh(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccess_Expired(t *testing.T) {
	t.Parallel()

	m := New(testAuthCfg())
	pair, err := m.Issue(testPrincipal(), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = m.ParseAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.NotErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccess_ExpiredByClock(t *testing.T) {
	t.Parallel()

	m := New(testAuthCfg())
	pair, err := m.Issue(testPrincipal(), time.Now())
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	_, err = m.ParseAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenExpired)

	// still inside the 5s leeway
	m.now = func() time.Time { return pair.AccessExpiresAt.Add(2 * time.Second) }
	_, err = m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
}

func TestParseAccess_Invalid(t *testing.T) {
	t.Parallel()

	cfg := testAuthCfg()
	m := New(cfg)
	p := testPrincipal()
	now := time.Now()

	signWith := func(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"uid":  p.ID.String(),
			"role": "student",
			"typ":  "access",
			"iss":  cfg.Issuer,
			"sub":  p.ID.String(),
			"aud":  cfg.Audience,
			"exp":  now.Add(time.Minute).Unix(),
			"iat":  now.Unix(),
		}
	}

	cases := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"empty", func(*testing.T) string { return "" }},
		{"garbage", func(*testing.T) string { return "not.a.jwt" }},
		{"wrong secret", func(t *testing.T) string { return signWith(t, jwt.SigningMethodHS256, "other", base()) }},
		{"wrong alg", func(t *testing.T) string { return signWith(t, jwt.SigningMethodHS512, cfg.JWTSecret, base()) }},
		{"wrong issuer", func(t *testing.T) string {
			c := base()
			c["iss"] = "someone-else"
			return signWith(t, jwt.SigningMethodHS256, cfg.JWTSecret, c)
		}},
		{"wrong audience", func(t *testing.T) string {
			c := base()
			c["aud"] = []string{"other-app"}
			return signWith(t, jwt.SigningMethodHS256, cfg.JWTSecret, c)
		}},
		{"unknown role", func(t *testing.T) string {
			c := base()
			c["role"] = "root"
			return signWith(t, jwt.SigningMethodHS256, cfg.JWTSecret, c)
		}},
		{"bad uid", func(t *testing.T) string {
			c := base()
			c["uid"] = "nope"
			c["sub"] = "nope"
			return signWith(t, jwt.SigningMethodHS256, cfg.JWTSecret, c)
		}},
		{"no exp", func(t *testing.T) string {
			c := base()
			delete(c, "exp")
			return signWith(t, jwt.SigningMethodHS256, cfg.JWTSecret, c)
		}},
		{"refresh signed with access secret", func(t *testing.T) string {
			c := base()
			c["typ"] = "refresh"
			return signWith(t, jwt.SigningMethodHS256, cfg.JWTSecret, c)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.ParseAccess(tc.token(t))
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	// sanity: the base claims are accepted.
	c, err := m.ParseAccess(signWith(t, jwt.SigningMethodHS256, cfg.JWTSecret, base()))
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, c.Role)
}

func TestParseRefresh_SeparateSecret(t *testing.T) {
	t.Parallel()

	m := New(testAuthCfg())
	other := testAuthCfg()
	other.RefreshSecret = "rotated"
	m2 := New(other)

	pair, err := m.Issue(testPrincipal(), time.Now())
	require.NoError(t, err)

	_, err = m2.ParseRefresh(pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	// access tokens are unaffected by the refresh secret.
	_, err = m2.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
}

func TestIssue_EmptySecret(t *testing.T) {
	t.Parallel()

	cfg := testAuthCfg()
	cfg.JWTSecret = ""
	cfg.RefreshSecret = ""

	_, err := New(cfg).Issue(testPrincipal(), time.Now())
	require.ErrorIs(t, err, ErrEmptySecret)
}
