package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	apierrors "github.com/pribylovaa/training-center/internal/errors"
	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/pkg/log"
	"github.com/pribylovaa/training-center/internal/service"
)

// RequireRole lets through only requests whose token role is one of roles.
// It must run after Authenticate: without claims it answers 401 TOKEN_MISSING,
// with a role outside the set it answers 403 FORBIDDEN.
// The role comes from the token only; it is not re-read per request.
func RequireRole(roles ...models.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if !ok {
				apierrors.WriteError(w, r, apierrors.ErrTokenMissing)
				return
			}

			if !slices.Contains(roles, claims.Role) {
				log.From(r.Context()).Info("role_denied",
					slog.String("role", string(claims.Role)),
					slog.String("path", r.URL.Path),
				)
				apierrors.WriteError(w, r, service.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
