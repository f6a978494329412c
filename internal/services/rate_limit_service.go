package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/resera/internal/ratelimit"
	pkglogger "github.com/BradenHooton/resera/pkg/logger"
)

// RateLimiter consumes one request against a tier's budget
type RateLimiter interface {
	Check(ctx context.Context, identifier string, tier ratelimit.Tier) (ratelimit.Result, error)
}

// RateLimitService applies the predefined tiers ahead of authentication and
// sensitive mutations. It never touches account state.
type RateLimitService struct {
	limiter     RateLimiter
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(limiter RateLimiter, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *RateLimitService {
	return &RateLimitService{
		limiter:     limiter,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// CheckRateLimit consumes one request for identifier under tier. ipAddress
// is only recorded in the audit trail when the request is rejected.
// A failing counter store fails open. Only an unknown tier returns an error.
func (s *RateLimitService) CheckRateLimit(ctx context.Context, identifier, ipAddress string, tier ratelimit.Tier) (ratelimit.Result, error) {
	policy, ok := ratelimit.PolicyFor(tier)
	if !ok {
		return ratelimit.Result{}, ratelimit.ErrUnknownTier
	}

	res, err := s.limiter.Check(ctx, identifier, tier)
	if err != nil {
		if errors.Is(err, ratelimit.ErrUnknownTier) {
			return ratelimit.Result{}, err
		}
		s.logger.Error("rate limit check failed, allowing request",
			slog.String("tier", string(tier)),
			slog.Any("error", err))
		return ratelimit.Result{
			Allowed:   true,
			Limit:     policy.Limit,
			Remaining: policy.Limit,
			ResetAt:   s.now().Add(policy.Window),
		}, nil
	}

	if !res.Allowed {
		s.logger.Warn("rate limit exceeded",
			slog.String("tier", string(tier)),
			slog.Int("retry_after", res.RetryAfter))
		s.auditLogger.LogRateLimitExceeded(identifier, string(tier), ipAddress, res.RetryAfter)
	}

	return res, nil
}
