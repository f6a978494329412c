package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/resera/internal/auth"
	"github.com/BradenHooton/resera/internal/ratelimit"
	pkghttp "github.com/BradenHooton/resera/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitChecker consumes one request from a tier's budget
type RateLimitChecker interface {
	CheckRateLimit(ctx context.Context, identifier, ipAddress string, tier ratelimit.Tier) (ratelimit.Result, error)
}

// KeyByIP identifies the caller by client address. Forwarding headers are
// honoured only when the direct peer is one of ipConfig's trusted proxies.
func KeyByIP(ipConfig *pkghttp.IPConfig) httprate.KeyFunc {
	if ipConfig == nil || len(ipConfig.TrustedProxies) == 0 {
		return prefixed("ip:", httprate.KeyByIP)
	}
	return prefixed("ip:", func(r *http.Request) (string, error) {
		return pkghttp.ExtractClientIP(r, ipConfig), nil
	})
}

// KeyByAccount identifies the caller by the authenticated account id and
// falls back to the client address when no claims are present
func KeyByAccount(fallback httprate.KeyFunc) httprate.KeyFunc {
	return func(r *http.Request) (string, error) {
		if claims := auth.GetClaimsFromContext(r); claims != nil && claims.AccountID != "" {
			return "account:" + claims.AccountID, nil
		}
		return fallback(r)
	}
}

func prefixed(prefix string, keyFn httprate.KeyFunc) httprate.KeyFunc {
	return func(r *http.Request) (string, error) {
		key, err := keyFn(r)
		if err != nil {
			return "", err
		}
		return prefix + key, nil
	}
}

// RateLimit enforces tier against the caller identified by keyFn. Allowed
// responses carry the X-RateLimit-* headers; denied ones get a 429 with
// Retry-After and the machine-readable body. ipConfig resolves the client
// address recorded when a request is rejected.
func RateLimit(checker RateLimitChecker, tier ratelimit.Tier, keyFn httprate.KeyFunc, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := keyFn(r)
			if err != nil {
				logger.Warn("failed to derive rate limit key", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			res, err := checker.CheckRateLimit(r.Context(), key, pkghttp.ExtractClientIP(r, ipConfig), tier)
			if err != nil {
				if errors.Is(err, ratelimit.ErrUnknownTier) {
					logger.Error("route configured with unknown rate limit tier", slog.String("tier", string(tier)))
				}
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if !res.Allowed {
				pkghttp.WriteRateLimited(w, res.Limit, res.Remaining, res.ResetAt, res.RetryAfter)
				return
			}

			pkghttp.SetRateLimitHeaders(w, res.Limit, res.Remaining, res.ResetAt)
			next.ServeHTTP(w, r)
		})
	}
}
