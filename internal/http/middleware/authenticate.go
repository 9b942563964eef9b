package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/training-center/internal/errors"
	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/pkg/log"
)

// TokenVerifier verifies access tokens. *tokens.Manager implements it.
type TokenVerifier interface {
	ParseAccess(token string) (*models.Claims, error)
}

type claimsKey struct{}

// Authenticate requires a valid access token in Authorization: Bearer.
//   - missing or malformed header: 401 TOKEN_MISSING;
//   - expired token: 401 TOKEN_EXPIRED;
//   - anything else wrong: 401 TOKEN_INVALID.
//
// On success the claims are stored in the context and the request logger gains user_id.
func Authenticate(v TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				apierrors.WriteError(w, r, apierrors.ErrTokenMissing)
				return
			}

			claims, err := v.ParseAccess(token)
			if err != nil {
				log.From(r.Context()).Debug("token_rejected", slog.String("err", err.Error()))
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = log.With(ctx, slog.String("user_id", claims.UserID.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c *models.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims stored by Authenticate.
func ClaimsFrom(ctx context.Context) (*models.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*models.Claims)
	return c, ok && c != nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}
