// Package tokens issues and verifies the HS256 JWTs used by the API.
//
// Two token kinds share one claim layout and differ by the "typ" claim and
// by secret: access tokens authorize API calls, refresh tokens are accepted
// only by the refresh endpoint. Verification is stateless; a Manager is safe
// for concurrent use.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/training-center/internal/config"
	"github.com/pribylovaa/training-center/internal/models"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures, wrong alg/iss/aud/typ.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired means the token was valid but its exp has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrEmptySecret is a configuration error: nothing to sign with.
	ErrEmptySecret = errors.New("empty signing secret")
)

// Type is the value of the "typ" claim.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

const leeway = 5 * time.Second

type tokenClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
	Type   Type   `json:"typ"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      []string
	now           func() time.Time
}

// New builds a Manager. An empty refresh secret falls back to the access secret.
func New(cfg config.AuthConfig) *Manager {
	refresh := cfg.RefreshSecret
	if refresh == "" {
		refresh = cfg.JWTSecret
	}

	return &Manager{
		accessSecret:  []byte(cfg.JWTSecret),
		refreshSecret: []byte(refresh),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		now:           time.Now,
	}
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// Issue mints an access/refresh pair for p.
func (m *Manager) Issue(p models.Principal, now time.Time) (*models.TokenPair, error) {
	const op = "tokens.Issue"

	now = now.UTC()

	access, err := m.sign(p, TypeAccess, uuid.NewString(), now, m.accessTTL, m.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	jti := uuid.NewString()
	refresh, err := m.sign(p, TypeRefresh, jti, now, m.refreshTTL, m.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshID:        jti,
		AccessExpiresAt:  now.Add(m.accessTTL),
		RefreshExpiresAt: now.Add(m.refreshTTL),
	}, nil
}

// ParseAccess verifies an access token.
func (m *Manager) ParseAccess(token string) (*models.Claims, error) {
	const op = "tokens.ParseAccess"

	c, err := m.parse(token, TypeAccess, m.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return c, nil
}

// ParseRefresh verifies a refresh token.
func (m *Manager) ParseRefresh(token string) (*models.Claims, error) {
	const op = "tokens.ParseRefresh"

	c, err := m.parse(token, TypeRefresh, m.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return c, nil
}

func (m *Manager) sign(p models.Principal, typ Type, jti string, now time.Time, ttl time.Duration, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}

	claims := tokenClaims{
		UserID: p.ID.String(),
		Role:   string(p.Role),
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   p.ID.String(),
			Audience:  jwt.ClaimStrings(m.audience),
		},
	}
	if typ == TypeAccess {
		claims.Name = p.DisplayName
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Manager) parse(tokenStr string, typ Type, secret []byte) (*models.Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	}
	if len(m.audience) > 0 {
		opts = append(opts, jwt.WithAudience(m.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidToken
			}

			return secret, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid || claims.Type != typ {
		return nil, ErrInvalidToken
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil || claims.Subject != claims.UserID {
		return nil, ErrInvalidToken
	}

	role := models.Role(claims.Role)
	if !role.Valid() {
		return nil, ErrInvalidToken
	}

	out := &models.Claims{
		UserID:      uid,
		Role:        role,
		DisplayName: claims.Name,
		TokenID:     claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}

	return out, nil
}
