package routes

import (
	"log/slog"

	"github.com/cheems/transit/internal/auth"
	"github.com/cheems/transit/internal/handlers"
	"github.com/cheems/transit/internal/middleware"
	"github.com/cheems/transit/internal/models"
	pkghttp "github.com/cheems/transit/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Dependencies collects what RegisterRoutes needs to mount the API.
type Dependencies struct {
	AuthHandler    *handlers.AuthHandler
	VehicleHandler *handlers.VehicleHandler
	RouteHandler   *handlers.RouteHandler
	Health         handlers.HealthChecker

	TokenManager *auth.TokenManager
	UserRepo     auth.UserRepository
	RevokeRepo   auth.TokenRevocationChecker

	IPConfig            *pkghttp.IPConfig
	AuthRequestsPerMin  int
	AdminRequestsPerMin int
	Logger              *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	authLimit := middleware.DefaultAuthRateLimit()
	if deps.AuthRequestsPerMin > 0 {
		authLimit.RequestsPerMinute = deps.AuthRequestsPerMin
	}
	authLimit.IPConfig = deps.IPConfig

	adminLimit := middleware.RateLimitConfig{RequestsPerMinute: 60, IPConfig: deps.IPConfig}
	if deps.AdminRequestsPerMin > 0 {
		adminLimit.RequestsPerMinute = deps.AdminRequestsPerMin
	}

	router.Get("/health", handlers.Health(deps.Health))

	// Public auth endpoints share one per-IP bucket
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(authLimit))
		r.Post("/auth/login", deps.AuthHandler.Login)
		r.Post("/auth/register", deps.AuthHandler.Register)
		r.Post("/auth/refresh", deps.AuthHandler.RefreshToken)
		r.Post("/auth/password-reset/request", deps.AuthHandler.RequestPasswordReset)
		r.Post("/auth/password-reset/confirm", deps.AuthHandler.ConfirmPasswordReset)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddlewareWithRevocation(deps.TokenManager, deps.RevokeRepo, auth.RevocationConfig{FailClosed: true}, deps.Logger))

		r.Post("/auth/logout", deps.AuthHandler.Logout)

		r.Get("/vehicles", deps.VehicleHandler.List)
		r.Get("/vehicles/{id}", deps.VehicleHandler.Get)
		r.Get("/routes", deps.RouteHandler.List)
		r.Get("/routes/{id}", deps.RouteHandler.Get)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(deps.UserRepo, models.RoleAdmin))
			r.Use(middleware.RateLimitByUser(adminLimit))

			r.Post("/vehicles", deps.VehicleHandler.Create)
			r.Put("/vehicles/{id}", deps.VehicleHandler.Update)
			r.Delete("/vehicles/{id}", deps.VehicleHandler.Delete)

			r.Post("/routes", deps.RouteHandler.Create)
			r.Post("/routes/import", deps.RouteHandler.Import)
			r.Get("/routes/import-template", deps.RouteHandler.Template)
			r.Delete("/routes/{id}", deps.RouteHandler.Delete)
		})
	})
}
