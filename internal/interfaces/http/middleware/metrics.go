package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector holds all Prometheus metrics for the application.
// It provides centralized metric registration and collection.
type MetricsCollector struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	httpRequestSize      *prometheus.HistogramVec
	httpResponseSize     *prometheus.HistogramVec

	// Conversion pipeline metrics
	conversionsTotal      *prometheus.CounterVec
	conversionDuration    *prometheus.HistogramVec
	queueDepth            prometheus.Gauge
	queueRejectionsTotal  *prometheus.CounterVec
	poolActiveWorkers     prometheus.Gauge
	poolWorkerCrashes     prometheus.Counter
	rateLimitExceededTotal *prometheus.CounterVec

	// Database metrics
	dbConnectionsActive prometheus.Gauge
	dbConnectionsIdle   prometheus.Gauge
	dbConnectionsMax    prometheus.Gauge

	// Redis metrics
	redisConnectionsActive prometheus.Gauge
	redisHits              *prometheus.CounterVec
	redisMisses            *prometheus.CounterVec
}

// NewMetricsCollector creates and registers all application metrics with Prometheus.
// Uses promauto to automatically register metrics with the default registry.
//
// Metrics are organized by subsystem:
//   - http: HTTP server metrics (requests, latency, in-flight)
//   - conversion: queue/worker/rate-limit metrics for the icon pipeline
//   - database: PostgreSQL connection pool metrics
//   - redis: Redis connection and cache metrics
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		// HTTP Metrics
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "iconforge",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests, labeled by method, path, and status code",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "iconforge",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				// Buckets: 1ms, 5ms, 10ms, 50ms, 100ms, 500ms, 1s, 5s, 10s
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"method", "path", "status"},
		),

		httpRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "iconforge",
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being served",
			},
		),

		httpRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "iconforge",
				Subsystem: "http",
				Name:      "request_size_bytes",
				Help:      "HTTP request size in bytes",
				// Buckets: 1KB, 10KB, 100KB, 1MB, 10MB, 100MB
				Buckets: []float64{1024, 10240, 102400, 1048576, 10485760, 104857600},
			},
			[]string{"method", "path"},
		),

		httpResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "iconforge",
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "HTTP response size in bytes",
				// Buckets: 1KB, 10KB, 100KB, 1MB, 10MB, 100MB
				Buckets: []float64{1024, 10240, 102400, 1048576, 10485760, 104857600},
			},
			[]string{"method", "path", "status"},
		),

		// Conversion Pipeline Metrics
		conversionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "iconforge",
				Subsystem: "conversion",
				Name:      "jobs_total",
				Help:      "Total number of conversion jobs, labeled by format and outcome (success/failure/timeout/crashed)",
			},
			[]string{"format", "outcome"},
		),

		conversionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "iconforge",
				Subsystem: "conversion",
				Name:      "job_duration_seconds",
				Help:      "Conversion job duration in seconds, from dequeue to completion",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"format"},
		),

		queueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "iconforge",
				Subsystem: "conversion",
				Name:      "queue_depth",
				Help:      "Current number of jobs waiting in the conversion queue",
			},
		),

		queueRejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "iconforge",
				Subsystem: "conversion",
				Name:      "queue_rejections_total",
				Help:      "Total number of jobs rejected because the queue was full, labeled by reason",
			},
			[]string{"reason"},
		),

		poolActiveWorkers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "iconforge",
				Subsystem: "conversion",
				Name:      "pool_active_workers",
				Help:      "Current number of worker goroutines actively processing a job",
			},
		),

		poolWorkerCrashes: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "iconforge",
				Subsystem: "conversion",
				Name:      "pool_worker_crashes_total",
				Help:      "Total number of worker panics recovered and respawned",
			},
		),

		rateLimitExceededTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "iconforge",
				Subsystem: "conversion",
				Name:      "rate_limit_exceeded_total",
				Help:      "Total number of requests rejected by the rate limiter, labeled by limiter kind",
			},
			[]string{"kind"},
		),

		// Database Metrics
		dbConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "iconforge",
				Subsystem: "database",
				Name:      "connections_active",
				Help:      "Number of active database connections currently in use",
			},
		),

		dbConnectionsIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "iconforge",
				Subsystem: "database",
				Name:      "connections_idle",
				Help:      "Number of idle database connections in the pool",
			},
		),

		dbConnectionsMax: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "iconforge",
				Subsystem: "database",
				Name:      "connections_max",
				Help:      "Maximum number of open database connections allowed",
			},
		),

		// Redis Metrics
		redisConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "iconforge",
				Subsystem: "redis",
				Name:      "connections_active",
				Help:      "Number of active Redis connections from the pool",
			},
		),

		redisHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "iconforge",
				Subsystem: "redis",
				Name:      "cache_hits_total",
				Help:      "Total number of Redis cache hits",
			},
			[]string{"operation"},
		),

		redisMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "iconforge",
				Subsystem: "redis",
				Name:      "cache_misses_total",
				Help:      "Total number of Redis cache misses",
			},
			[]string{"operation"},
		),
	}
}

// MetricsMiddleware wraps HTTP handlers to automatically collect request metrics.
// It records:
//   - Request count (by method, path, status)
//   - Request duration (histogram)
//   - In-flight requests (gauge)
//   - Request and response sizes
//
// This middleware should be placed early in the middleware chain (after RequestID)
// to capture all requests including rejected ones.
//
// Usage:
//
//	collector := middleware.NewMetricsCollector()
//	r.Use(middleware.MetricsMiddleware(collector))
func MetricsMiddleware(collector *MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Increment in-flight requests
			collector.httpRequestsInFlight.Inc()
			defer collector.httpRequestsInFlight.Dec()

			// Record request size
			if r.ContentLength > 0 {
				collector.httpRequestSize.WithLabelValues(
					r.Method,
					normalizePathForMetrics(r.URL.Path),
				).Observe(float64(r.ContentLength))
			}

			// Wrap response writer to capture status and size
			wrapped := &metricsResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // Default status
			}

			// Record start time for duration calculation
			start := time.Now()

			// Process request
			next.ServeHTTP(wrapped, r)

			// Calculate duration
			duration := time.Since(start).Seconds()

			// Path label for metrics (see normalizePathForMetrics)
			path := normalizePathForMetrics(r.URL.Path)
			method := r.Method
			status := strconv.Itoa(wrapped.statusCode)

			// Record metrics
			collector.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
			collector.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
			collector.httpResponseSize.WithLabelValues(method, path, status).Observe(float64(wrapped.bytesWritten))
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and bytes written.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (mrw *metricsResponseWriter) WriteHeader(statusCode int) {
	if !mrw.wroteHeader {
		mrw.statusCode = statusCode
		mrw.wroteHeader = true
		mrw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	if !mrw.wroteHeader {
		mrw.WriteHeader(http.StatusOK)
	}
	n, err := mrw.ResponseWriter.Write(b)
	mrw.bytesWritten += int64(n)
	return n, err
}

// normalizePathForMetrics returns the path label used for Prometheus. Every
// path, known or not, is returned unchanged; no dynamic segments are collapsed.
func normalizePathForMetrics(path string) string {
	switch path {
	case "/api/v1/health", "/api/v1/convert", "/metrics":
		return path
	}
	return path
}

// RecordConversion records a completed conversion job.
//
// Parameters:
//   - format: requested output format ("ico", "icns", "favicon", "png", "all")
//   - outcome: "success", "failure", "timeout", or "crashed"
func (mc *MetricsCollector) RecordConversion(format, outcome string, duration float64) {
	mc.conversionsTotal.WithLabelValues(format, outcome).Inc()
	mc.conversionDuration.WithLabelValues(format).Observe(duration)
}

// SetQueueDepth reports the current number of jobs waiting in the queue.
func (mc *MetricsCollector) SetQueueDepth(depth int) {
	mc.queueDepth.Set(float64(depth))
}

// RecordQueueRejection records a job rejected because the queue was full.
func (mc *MetricsCollector) RecordQueueRejection(reason string) {
	mc.queueRejectionsTotal.WithLabelValues(reason).Inc()
}

// SetActiveWorkers reports the current number of busy worker goroutines.
func (mc *MetricsCollector) SetActiveWorkers(n int) {
	mc.poolActiveWorkers.Set(float64(n))
}

// RecordWorkerCrash records a worker panic that was recovered and respawned.
func (mc *MetricsCollector) RecordWorkerCrash() {
	mc.poolWorkerCrashes.Inc()
}

// RecordRateLimitExceeded records a request rejected by the rate limiter.
//
// Parameters:
//   - kind: which limiter rejected the request ("convert", "default", etc.)
func (mc *MetricsCollector) RecordRateLimitExceeded(kind string) {
	mc.rateLimitExceededTotal.WithLabelValues(kind).Inc()
}

// UpdateDatabaseStats updates database connection pool metrics.
// Call this periodically (e.g., every 30 seconds) from a background goroutine.
func (mc *MetricsCollector) UpdateDatabaseStats(active, idle, max int) {
	mc.dbConnectionsActive.Set(float64(active))
	mc.dbConnectionsIdle.Set(float64(idle))
	mc.dbConnectionsMax.Set(float64(max))
}

// UpdateRedisStats updates Redis connection pool metrics.
// Call this periodically (e.g., every 30 seconds) from a background goroutine.
func (mc *MetricsCollector) UpdateRedisStats(active int) {
	mc.redisConnectionsActive.Set(float64(active))
}

// RecordCacheHit records a Redis cache hit.
func (mc *MetricsCollector) RecordCacheHit(operation string) {
	mc.redisHits.WithLabelValues(operation).Inc()
}

// RecordCacheMiss records a Redis cache miss.
func (mc *MetricsCollector) RecordCacheMiss(operation string) {
	mc.redisMisses.WithLabelValues(operation).Inc()
}
