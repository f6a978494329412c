package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/resera/internal/auth"
	"github.com/BradenHooton/resera/internal/handlers"
	"github.com/BradenHooton/resera/internal/middleware"
	"github.com/BradenHooton/resera/internal/ratelimit"
	pkghttp "github.com/BradenHooton/resera/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth      *handlers.AuthHandler
	Password  *handlers.PasswordHandler
	TwoFactor *handlers.TwoFactorHandler
	Health    http.HandlerFunc
}

// RateLimitOptions configures per-route rate limiting. A nil Checker
// disables it.
type RateLimitOptions struct {
	Checker  middleware.RateLimitChecker
	IPConfig *pkghttp.IPConfig
	Logger   *slog.Logger
}

// limiter returns the middleware for a tier, or a pass-through when rate
// limiting is disabled
func (o RateLimitOptions) limiter(tier ratelimit.Tier, byAccount bool) func(http.Handler) http.Handler {
	if o.Checker == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	keyFn := middleware.KeyByIP(o.IPConfig)
	if byAccount {
		keyFn = middleware.KeyByAccount(keyFn)
	}
	return middleware.RateLimit(o.Checker, tier, keyFn, o.IPConfig, o.Logger)
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, tokenManager *auth.TokenManager, limits RateLimitOptions) {
	loginLimit := limits.limiter(ratelimit.TierLogin, false)
	apiLimit := limits.limiter(ratelimit.TierAPI, false)

	router.Get("/health", h.Health)

	// Public routes - no authentication required
	router.With(loginLimit).Post("/auth/login", h.Auth.Login)
	router.With(loginLimit).Post("/auth/login/2fa", h.Auth.LoginTwoFactor)
	router.With(apiLimit).Post("/auth/password/strength", h.Password.CheckStrength)

	// Protected routes - a bearer access token is required. Sensitive
	// mutations are limited per account, after authentication.
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))

		r.With(limits.limiter(ratelimit.TierAPI, true)).Get("/auth/2fa", h.TwoFactor.Status)

		r.Group(func(r chi.Router) {
			r.Use(limits.limiter(ratelimit.TierStrict, true))
			r.Post("/auth/password", h.Password.ChangePassword)
			r.Post("/auth/2fa/setup", h.TwoFactor.Setup)
			r.Post("/auth/2fa/confirm", h.TwoFactor.Confirm)
			r.Post("/auth/2fa/disable", h.TwoFactor.Disable)
			r.Post("/auth/2fa/backup-codes", h.TwoFactor.RegenerateBackupCodes)
		})
	})
}
