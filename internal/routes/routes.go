package routes

import (
	"net/http"

	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/handlers"
	"github.com/BradenHooton/bastion/internal/middleware"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/services"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	securityHandler *handlers.SecurityHandler,
	tokenManager *auth.TokenManager,
	eventService *services.SecurityEventService,
	ipConfig *pkghttp.IPConfig,
	rateLimit middleware.RateLimitConfig,
) {
	// Denied requests never reach the orchestrator: no attempt row, only an
	// event trail entry
	onLimited := func(r *http.Request) {
		eventService.Record(r.Context(), nil, models.EventRateLimitExceeded, nil,
			pkghttp.ExtractClientIP(r, ipConfig), r.Header.Get("User-Agent"))
	}

	// Public routes
	router.With(middleware.RateLimitByIP(rateLimit, onLimited)).Post("/auth/login", authHandler.Login)

	// Protected routes - the subject can only read or erase their own trail
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Get("/security/events", securityHandler.Events)
		r.Get("/security/login-history", securityHandler.LoginHistory)
		r.Get("/security/export", securityHandler.Export)
		r.Delete("/security/data", securityHandler.Erase)
	})
}
