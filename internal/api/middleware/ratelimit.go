package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/metrics"
)

// Limiter counts hits against a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

// Rule is one named per-IP limit.
type Rule struct {
	Name    string
	Max     int
	Window  time.Duration
	Message string
}

// RateLimit rejects requests over the rule's budget with 429. Limiter
// failures let the request through.
func RateLimit(l Limiter, rule Rule, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rule.Name + ":" + c.RealIP()

			allowed, retry, err := l.Allow(c.Request().Context(), key, rule.Max, rule.Window)
			if err != nil {
				log.Warn().Err(err).Str("rule", rule.Name).Str("ip", c.RealIP()).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}
			if !allowed {
				metrics.RateLimitedTotal.WithLabelValues(rule.Name).Inc()
				log.Warn().Str("rule", rule.Name).Str("ip", c.RealIP()).Dur("retry_after", retry).Msg("rate limit exceeded")
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				return &domain.RateLimitError{Message: rule.Message, RetryAfter: retry}
			}
			return next(c)
		}
	}
}
