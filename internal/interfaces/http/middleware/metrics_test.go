package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsCollector(t *testing.T) {
	// Act
	collector := NewMetricsCollector()

	// Assert - verify all metrics are initialized
	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.httpRequestsInFlight)
	assert.NotNil(t, collector.httpRequestSize)
	assert.NotNil(t, collector.httpResponseSize)
	assert.NotNil(t, collector.conversionsTotal)
	assert.NotNil(t, collector.conversionDuration)
	assert.NotNil(t, collector.queueDepth)
	assert.NotNil(t, collector.queueRejectionsTotal)
	assert.NotNil(t, collector.poolActiveWorkers)
	assert.NotNil(t, collector.poolWorkerCrashes)
	assert.NotNil(t, collector.rateLimitExceededTotal)
	assert.NotNil(t, collector.dbConnectionsActive)
	assert.NotNil(t, collector.dbConnectionsIdle)
	assert.NotNil(t, collector.dbConnectionsMax)
	assert.NotNil(t, collector.redisConnectionsActive)
	assert.NotNil(t, collector.redisHits)
	assert.NotNil(t, collector.redisMisses)
}

func newTestCollector(prefix string) *MetricsCollector {
	return &MetricsCollector{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: prefix + "_http_requests_total"},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 1, 10},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: prefix + "_http_requests_in_flight"},
		),
		httpRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_size_bytes",
				Buckets: []float64{1024, 10240, 102400},
			},
			[]string{"method", "path"},
		),
		httpResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_response_size_bytes",
				Buckets: []float64{1024, 10240, 102400},
			},
			[]string{"method", "path", "status"},
		),
	}
}

func TestMetricsMiddleware_RecordsRequest(t *testing.T) {
	collector := newTestCollector("test")
	middleware := MetricsMiddleware(collector)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wrappedHandler := middleware(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	count := testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/test", "200"))
	assert.InDelta(t, float64(1), count, 0.001, "Should record one request")
}

func TestMetricsMiddleware_InFlightRequests(t *testing.T) {
	collector := newTestCollector("test2")
	middleware := MetricsMiddleware(collector)

	started := make(chan bool)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- true
		<-started
		w.WriteHeader(http.StatusOK)
	})

	wrappedHandler := middleware(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	go func() {
		wrappedHandler.ServeHTTP(rec, req)
	}()

	<-started

	inFlight := testutil.ToFloat64(collector.httpRequestsInFlight)
	assert.InDelta(t, float64(1), inFlight, 0.001, "Should have 1 request in flight")

	started <- true
}

func TestMetricsMiddleware_DifferentStatusCodes(t *testing.T) {
	testCases := []struct {
		name           string
		statusCode     int
		expectedStatus string
	}{
		{"Success 200", http.StatusOK, "200"},
		{"Created 201", http.StatusCreated, "201"},
		{"Bad Request 400", http.StatusBadRequest, "400"},
		{"Too Many Requests 429", http.StatusTooManyRequests, "429"},
		{"Not Found 404", http.StatusNotFound, "404"},
		{"Internal Server Error 500", http.StatusInternalServerError, "500"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			collector := newTestCollector("test3_" + tc.expectedStatus)
			middleware := MetricsMiddleware(collector)

			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
			})

			wrappedHandler := middleware(testHandler)

			req := httptest.NewRequest(http.MethodPost, "/test", nil)
			rec := httptest.NewRecorder()

			wrappedHandler.ServeHTTP(rec, req)

			assert.Equal(t, tc.statusCode, rec.Code)

			count := testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/test", tc.expectedStatus))
			assert.InDelta(t, float64(1), count, 0.001, "Should record request with status %s", tc.expectedStatus)
		})
	}
}

func TestMetricsCollector_RecordConversion(t *testing.T) {
	collector := &MetricsCollector{
		conversionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_conversions_total"},
			[]string{"format", "outcome"},
		),
		conversionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "test_conversion_duration_seconds",
				Buckets: []float64{0.01, 0.1, 1, 10},
			},
			[]string{"format"},
		),
	}

	collector.RecordConversion("ico", "success", 0.2)
	collector.RecordConversion("ico", "success", 0.3)
	collector.RecordConversion("icns", "timeout", 30)

	icoSuccess := testutil.ToFloat64(collector.conversionsTotal.WithLabelValues("ico", "success"))
	assert.Equal(t, float64(2), icoSuccess)

	icnsTimeout := testutil.ToFloat64(collector.conversionsTotal.WithLabelValues("icns", "timeout"))
	assert.Equal(t, float64(1), icnsTimeout)
}

func TestMetricsCollector_QueueAndPoolGauges(t *testing.T) {
	collector := &MetricsCollector{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_queue_depth"}),
		queueRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_queue_rejections_total"},
			[]string{"reason"},
		),
		poolActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_pool_active_workers"}),
		poolWorkerCrashes: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_pool_worker_crashes_total"}),
	}

	collector.SetQueueDepth(7)
	collector.RecordQueueRejection("queue_full")
	collector.SetActiveWorkers(3)
	collector.RecordWorkerCrash()

	assert.Equal(t, float64(7), testutil.ToFloat64(collector.queueDepth))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.queueRejectionsTotal.WithLabelValues("queue_full")))
	assert.Equal(t, float64(3), testutil.ToFloat64(collector.poolActiveWorkers))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.poolWorkerCrashes))
}

func TestMetricsCollector_RecordRateLimitExceeded(t *testing.T) {
	collector := &MetricsCollector{
		rateLimitExceededTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_rate_limit_exceeded_total"},
			[]string{"kind"},
		),
	}

	collector.RecordRateLimitExceeded("convert")
	collector.RecordRateLimitExceeded("convert")

	count := testutil.ToFloat64(collector.rateLimitExceededTotal.WithLabelValues("convert"))
	assert.Equal(t, float64(2), count)
}

func TestMetricsCollector_UpdateDatabaseStats(t *testing.T) {
	collector := &MetricsCollector{
		dbConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_db_connections_active"}),
		dbConnectionsIdle:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_db_connections_idle"}),
		dbConnectionsMax:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_db_connections_max"}),
	}

	collector.UpdateDatabaseStats(10, 5, 25)

	assert.Equal(t, float64(10), testutil.ToFloat64(collector.dbConnectionsActive))
	assert.Equal(t, float64(5), testutil.ToFloat64(collector.dbConnectionsIdle))
	assert.Equal(t, float64(25), testutil.ToFloat64(collector.dbConnectionsMax))
}

func TestMetricsCollector_UpdateRedisStats(t *testing.T) {
	collector := &MetricsCollector{
		redisConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_redis_connections_active"}),
	}

	collector.UpdateRedisStats(8)

	assert.Equal(t, float64(8), testutil.ToFloat64(collector.redisConnectionsActive))
}

func TestMetricsCollector_RecordCacheHitMiss(t *testing.T) {
	collector := &MetricsCollector{
		redisHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_redis_cache_hits_total"},
			[]string{"operation"},
		),
		redisMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_redis_cache_misses_total"},
			[]string{"operation"},
		),
	}

	collector.RecordCacheHit("get")
	collector.RecordCacheHit("get")
	collector.RecordCacheMiss("get")

	hits := testutil.ToFloat64(collector.redisHits.WithLabelValues("get"))
	assert.Equal(t, float64(2), hits)

	misses := testutil.ToFloat64(collector.redisMisses.WithLabelValues("get"))
	assert.Equal(t, float64(1), misses)
}

func TestNormalizePathForMetrics(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Health endpoint", "/api/v1/health", "/api/v1/health"},
		{"Convert endpoint", "/api/v1/convert", "/api/v1/convert"},
		{"Metrics endpoint", "/metrics", "/metrics"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := normalizePathForMetrics(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

