package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/icon-forge/iconforge/internal/infrastructure/persistence/postgres"
	"github.com/icon-forge/iconforge/internal/infrastructure/persistence/redis"
)

// HealthHandler handles the health check endpoint for monitoring and
// orchestration. It verifies the two stateful dependencies the conversion
// service relies on: Postgres (rate limiting, metrics) and Redis (asynq).
type HealthHandler struct {
	db     *sqlx.DB
	redis  *redis.Client
	logger zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler with the given dependencies.
func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, logger: logger}
}

// HealthResponse is the response body for GET /api/v1/health.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Timestamp string                  `json:"timestamp"`
	Checks    map[string]CheckDetails `json:"checks"`
}

// CheckDetails describes the outcome of one dependency check.
type CheckDetails struct {
	Status    string  `json:"status"` // "up" or "down"
	LatencyMs float64 `json:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Health handles GET /api/v1/health, checking database and Redis
// connectivity. Returns 200 if both are up, 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := make(map[string]CheckDetails)

	dbStatus, dbLatency := h.checkDatabase(ctx)
	checks["database"] = dbStatus

	redisStatus, redisLatency := h.checkRedis(ctx)
	checks["redis"] = redisStatus

	status := "ok"
	httpStatus := http.StatusOK
	if dbStatus.Status == "down" || redisStatus.Status == "down" {
		status = "down"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	logEvent := h.logger.With().
		Str("status", status).
		Float64("database_latency_ms", dbLatency).
		Float64("redis_latency_ms", redisLatency).
		Logger()

	if status == "down" {
		logEvent.Warn().Msg("health check failed")
	} else {
		logEvent.Debug().Msg("health check succeeded")
	}

	if err := EncodeJSON(w, httpStatus, response); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode health response")
	}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) (CheckDetails, float64) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := postgres.HealthCheck(checkCtx, h.db)
	latency := time.Since(start).Seconds() * 1000

	if err != nil {
		h.logger.Warn().Err(err).Float64("latency_ms", latency).Msg("database health check failed")
		return CheckDetails{Status: "down", LatencyMs: latency, Error: err.Error()}, latency
	}
	return CheckDetails{Status: "up", LatencyMs: latency}, latency
}

func (h *HealthHandler) checkRedis(ctx context.Context) (CheckDetails, float64) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()

	if h.redis == nil {
		latency := time.Since(start).Seconds() * 1000
		h.logger.Warn().Float64("latency_ms", latency).Msg("redis client is nil")
		return CheckDetails{Status: "down", LatencyMs: latency, Error: "redis client not configured"}, latency
	}

	err := h.redis.HealthCheck(checkCtx)
	latency := time.Since(start).Seconds() * 1000

	if err != nil {
		h.logger.Warn().Err(err).Float64("latency_ms", latency).Msg("redis health check failed")
		return CheckDetails{Status: "down", LatencyMs: latency, Error: err.Error()}, latency
	}
	return CheckDetails{Status: "up", LatencyMs: latency}, latency
}
