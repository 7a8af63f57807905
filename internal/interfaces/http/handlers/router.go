package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/icon-forge/iconforge/internal/interfaces/http/middleware"
	"github.com/icon-forge/iconforge/internal/ratelimit"
)

// RouterConfig holds the dependencies NewRouter wires into the chi router.
type RouterConfig struct {
	ConvertHandler *ConvertHandler
	HealthHandler  *HealthHandler
	AdminHandler   *AdminHandler

	// Limiter backs the convert endpoint's rate-limit gate.
	Limiter          *ratelimit.Limiter
	MetricsCollector *middleware.MetricsCollector
	Logger           zerolog.Logger

	AdminPassword string
	CORSOrigins   []string
	IsProd        bool
}

// NewRouter creates a new chi router with all routes and middleware configured.
// This is the main entry point for HTTP routing.
//
// Middleware order (CRITICAL for security):
//  1. RequestID - generates correlation ID
//  2. Metrics - Prometheus metrics collection
//  3. Logger - structured request/response logging
//  4. Recovery - panic recovery
//  5. SecurityHeaders - defense headers (CSP, X-Frame-Options, etc.)
//  6. CORS - cross-origin resource sharing
//  7. Timeout - bounds request lifetime
//
// Route groups:
//   - Health/Metrics routes: /api/v1/health, /metrics (no authentication)
//   - Convert route: /api/v1/convert (rate-limited by client IP)
//   - Admin routes: /api/v1/admin/stats/* (shared-secret gated)
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Global middleware (applies to all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.MetricsMiddleware(cfg.MetricsCollector))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))

	// Security headers with production config
	securityCfg := middleware.DefaultSecurityHeadersConfig(cfg.IsProd)
	r.Use(middleware.SecurityHeaders(securityCfg))

	// CORS with appropriate config
	var corsCfg middleware.CORSConfig
	if cfg.IsProd {
		corsCfg = middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsCfg.AllowedOrigins = cfg.CORSOrigins
		}
	} else {
		corsCfg = middleware.DevelopmentCORSConfig()
	}
	r.Use(middleware.CORS(corsCfg))

	// Timeout middleware (prevent long-running requests)
	r.Use(chimiddleware.Timeout(contextTimeout * time.Second))

	// Health check endpoint (no authentication required)
	r.Get("/api/v1/health", cfg.HealthHandler.Health)

	// Prometheus metrics endpoint (no authentication required)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Convert endpoint: rate-limited by client IP ahead of the handler.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimiter(middleware.RateLimiterConfig{
				Limiter:          cfg.Limiter,
				MetricsCollector: cfg.MetricsCollector,
				Logger:           cfg.Logger,
				Kind:             "convert",
			}))
			r.Post("/convert", cfg.ConvertHandler.Convert)
		})

		// Admin stats routes: gated by a shared secret, not by the public rate limiter.
		r.Route("/admin/stats", func(r chi.Router) {
			r.Use(AdminAuth(cfg.AdminPassword, cfg.Logger))
			r.Get("/summary", cfg.AdminHandler.Summary)
			r.Get("/failures", cfg.AdminHandler.Failures)
			r.Delete("/failures", cfg.AdminHandler.DeleteFailures)
		})
	})

	return r
}
