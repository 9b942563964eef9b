package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/pkg/log"
	"github.com/pribylovaa/training-center/internal/pkg/redact"
	"github.com/pribylovaa/training-center/internal/storage"
	"github.com/pribylovaa/training-center/internal/tokens"
)

const maxDisplayName = 100

// Register creates a student account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.Register"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(password); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	name, err := validateDisplayName(displayName, normEmail)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        normEmail,
		DisplayName:  name,
		Role:         models.RoleStudent,
		PasswordHash: hashed,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// Login checks identifier (e-mail) and password and issues a token pair.
func (s *Service) Login(ctx context.Context, identifier, password string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.Login"

	user, err := s.checkCredentials(ctx, identifier, password)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// AdminLogin is Login restricted to admins. A valid non-admin identity gets ErrForbidden.
func (s *Service) AdminLogin(ctx context.Context, identifier, password string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.AdminLogin"

	user, err := s.checkCredentials(ctx, identifier, password)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.Role != models.RoleAdmin {
		log.From(ctx).Warn("admin_login_forbidden",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// Refresh exchanges a refresh token for a new pair.
// The user is re-read, so deactivation and role changes take effect here.
// With session tracking on, the presented token is consumed (single use).
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.Refresh"

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, mapTokenErr(err))
	}

	if s.cfg.TrackSessions {
		if err := s.consumeSession(ctx, claims); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	user, err := s.storage.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !user.Active {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrAccountDisabled)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// Logout revokes the refresh session when tracking is on. It is idempotent:
// an expired, unknown or already revoked session is not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.auth.Logout"

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, tokens.ErrTokenExpired) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, mapTokenErr(err))
	}

	if !s.cfg.TrackSessions {
		return nil
	}

	hash := hashTokenID(claims.TokenID)
	if _, err := s.storage.RevokeSession(ctx, hash); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.markCacheRevoked(ctx, op, hash)

	return nil
}

// Verify checks an access token and returns its claims.
func (s *Service) Verify(ctx context.Context, accessToken string) (*models.Claims, error) {
	const op = "service.auth.Verify"

	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapTokenErr(err))
	}

	return claims, nil
}

func (s *Service) checkCredentials(ctx context.Context, identifier, password string) (*models.User, error) {
	const op = "service.auth.checkCredentials"

	lg := log.From(ctx)

	normEmail, err := validateEmail(identifier)
	if err != nil || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Info("login_unknown_identifier", slog.String("email", redact.Email(normEmail)))
			return nil, ErrInvalidCredentials
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		lg.Info("login_wrong_password", slog.String("user_id", user.ID.String()))
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		lg.Info("login_account_disabled", slog.String("user_id", user.ID.String()))
		return nil, ErrAccountDisabled
	}

	return user, nil
}

func mapTokenErr(err error) error {
	if errors.Is(err, tokens.ErrTokenExpired) {
		return ErrTokenExpired
	}

	return ErrInvalidToken
}

func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(b), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail trims, parses and lowercases an e-mail.
func validateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(email), nil
}

// validatePassword: at least 8 runes with a lower, an upper, a digit and a special character.
func validatePassword(pw string) error {
	if len(pw) == 0 {
		return ErrEmptyPassword
	}

	if len([]rune(pw)) < 8 || len(pw) > 72 {
		return ErrWeakPassword
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return ErrWeakPassword
	}

	return nil
}

// validateDisplayName trims the name; an empty one falls back to the e-mail local part.
func validateDisplayName(raw, email string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	if len([]rune(name)) > maxDisplayName {
		return "", ErrInvalidArgument
	}

	return name, nil
}
