// Package http assembles the REST API: chi router, middleware and routes.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pribylovaa/training-center/internal/http/handlers"
	"github.com/pribylovaa/training-center/internal/http/middleware"
	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/service"
)

// Options are the HTTP router build parameters.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	// BasePath such as "/api"; empty registers the routes at the root.
	BasePath string
	// LoginLimiter throttles the login endpoints; nil disables throttling.
	LoginLimiter *middleware.RateLimiter
	// Metrics instruments every request; nil disables instrumentation.
	Metrics     *middleware.Metrics
	CORSOrigins []string
}

// NewRouter builds the http.Handler with chi, the middleware stack and the routes.
func NewRouter(svc *service.Service, v middleware.TokenVerifier, opts Options) http.Handler {
	root := chi.NewRouter()

	// outer -> inner
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // before logging
		chimw.RealIP,
		middleware.Logging(opts.Logger),
		middleware.SecurityHeaders(),
	)
	if len(opts.CORSOrigins) > 0 {
		root.Use(middleware.CORS(opts.CORSOrigins))
	}
	if opts.Metrics != nil {
		root.Use(opts.Metrics.Instrument())
	}
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	h := handlers.New(svc)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, v, opts.LoginLimiter)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, v, opts.LoginLimiter)
	return root
}

// registerRoutes is the single place where the REST endpoints are declared.
func registerRoutes(r chi.Router, h *handlers.Handlers, v middleware.TokenVerifier, limiter *middleware.RateLimiter) {
	authn := middleware.Authenticate(v)
	anyRole := middleware.RequireRole(models.RoleStudent, models.RoleAdmin)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	// auth
	r.Post("/auth/register", h.Register)
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware())
		}
		r.Post("/auth/login", h.Login)
		r.Post("/auth/admin/login", h.AdminLogin)
	})
	r.Post("/auth/refresh-token", h.RefreshToken)
	r.With(authn).Get("/auth/verify", h.Verify)
	r.Post("/auth/logout", h.Logout)

	// users
	r.Route("/users/me", func(r chi.Router) {
		r.Use(authn)
		r.Get("/", h.Me)
		r.Patch("/", h.UpdateMe)
		r.Post("/avatar/presign", h.AvatarPresign)
		r.Post("/avatar/confirm", h.AvatarConfirm)
	})

	// admin
	r.With(authn, adminOnly).Patch("/admin/users/{id}", h.AdminUpdateUser)

	// comments
	r.Get("/courses/{course_id}/comments", h.ListCourseComments)
	r.With(authn, anyRole).Post("/courses/{course_id}/comments", h.CreateComment)
	r.Get("/comments/{id}", h.GetComment)
	r.Get("/comments/{id}/replies", h.ListReplies)
	r.With(authn, adminOnly).Delete("/comments/{id}", h.DeleteComment)
}
