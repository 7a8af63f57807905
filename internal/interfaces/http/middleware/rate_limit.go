package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/icon-forge/iconforge/internal/ratelimit"
)

// RateLimiterConfig holds configuration for the rate limiting middleware.
type RateLimiterConfig struct {
	// Limiter performs the identity-keyed check_and_increment against its store.
	Limiter *ratelimit.Limiter

	// MetricsCollector records rate limit metrics.
	MetricsCollector *MetricsCollector

	// Logger is used to log rate limit events.
	Logger zerolog.Logger

	// TrustProxy determines whether to trust X-Forwarded-For header for IP extraction.
	// Only enable if behind a trusted reverse proxy (nginx, ALB, etc.)
	// Default: false (safer for security)
	TrustProxy bool

	// Kind labels this limiter instance in metrics and log lines (e.g. "convert").
	Kind string
}

// RateLimiter creates a rate limiting middleware keyed by client IP, backed by
// the configured ratelimit.Limiter (Postgres or in-memory).
//
// Response headers set:
//   - X-RateLimit-Limit: configured requests-per-window (echoed from limiter, if known)
//   - X-RateLimit-Remaining: requests remaining in current window
//   - X-RateLimit-Reset: Unix timestamp when window resets
//   - Retry-After: seconds until retry (only when 429 returned)
//
// Usage:
//
//	r.Use(middleware.RateLimiter(cfg))
func RateLimiter(cfg RateLimiterConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			clientIP := extractClientIP(r, cfg.TrustProxy)

			result, err := cfg.Limiter.CheckAndIncrement(ctx, clientIP, time.Now())
			if err != nil {
				// Fail open for availability; log for visibility.
				cfg.Logger.Error().
					Err(err).
					Str("ip", clientIP).
					Str("request_id", GetRequestID(ctx)).
					Msg("rate limit check failed")

				next.ServeHTTP(w, r)
				return
			}

			resetAt := time.Now().Add(result.TimeToExpire).Unix()
			remaining := cfg.Limiter.Limit() - result.TotalHits
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

			if result.Blocked {
				if cfg.MetricsCollector != nil {
					cfg.MetricsCollector.RecordRateLimitExceeded(cfg.Kind)
				}

				cfg.Logger.Warn().
					Str("ip", clientIP).
					Str("path", r.URL.Path).
					Int("total_hits", result.TotalHits).
					Str("request_id", GetRequestID(ctx)).
					Msg("rate limit exceeded")

				retryAfter := int(result.TimeToExpire.Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				WriteErrorWithExtensions(w, r,
					http.StatusTooManyRequests,
					"Rate Limit Exceeded",
					fmt.Sprintf("You have exceeded the rate limit; retry in %d seconds", retryAfter),
					map[string]interface{}{
						"totalHits":  result.TotalHits,
						"retryAfter": retryAfter,
					},
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractClientIP extracts the client IP address from the request.
// If trustProxy is true, it checks X-Forwarded-For and X-Real-IP headers.
// Otherwise, it uses RemoteAddr directly.
func extractClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		return getClientIP(r) // Uses X-Forwarded-For logic
	}

	// Don't trust proxy headers - use RemoteAddr directly
	remoteAddr := r.RemoteAddr

	// Strip port if present
	for i := len(remoteAddr) - 1; i >= 0; i-- {
		if remoteAddr[i] == ':' {
			// IPv6 addresses are wrapped in brackets [::1]:8080
			if i > 0 && remoteAddr[0] == '[' {
				return remoteAddr[1 : i-1]
			}
			return remoteAddr[:i]
		}
	}

	return remoteAddr
}
