// Package main wires together the conversion service's HTTP server: the
// sanitizer/imaging pipeline, the job queue and worker pool, the rate
// limiter, the metrics recorder, and the asynq task runner that drains it.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/icon-forge/iconforge/internal/config"
	"github.com/icon-forge/iconforge/internal/imaging"
	"github.com/icon-forge/iconforge/internal/infrastructure/jobs"
	"github.com/icon-forge/iconforge/internal/infrastructure/jobs/asynq"
	"github.com/icon-forge/iconforge/internal/infrastructure/jobs/tasks"
	"github.com/icon-forge/iconforge/internal/infrastructure/persistence/postgres"
	"github.com/icon-forge/iconforge/internal/infrastructure/persistence/redis"
	"github.com/icon-forge/iconforge/internal/interfaces/http/handlers"
	"github.com/icon-forge/iconforge/internal/interfaces/http/middleware"
	"github.com/icon-forge/iconforge/internal/metrics"
	"github.com/icon-forge/iconforge/internal/pool"
	"github.com/icon-forge/iconforge/internal/queue"
	"github.com/icon-forge/iconforge/internal/ratelimit"
)

const (
	shutdownGrace = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.LogLevel)

	db, err := postgres.NewDBFromURL(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer func() { _ = postgres.Close(db) }()

	redisClient, err := redis.NewClient(redisConfigFromAddr(cfg.RedisAddr, cfg.RedisPassword))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	asynqClient, err := asynq.NewClient(asynq.ClientConfig{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create asynq client")
	}
	defer func() { _ = asynqClient.Close() }()

	metricsStore := metrics.NewPostgresStore(db)

	asynqServerCfg := asynq.DefaultServerConfig(cfg.RedisAddr, logger)
	asynqServerCfg.RedisPassword = cfg.RedisPassword
	asynqServerCfg.Concurrency = cfg.MetricsQueueConcurrency
	asynqServer, err := asynq.NewServer(asynqServerCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create asynq server")
	}
	asynqServer.RegisterHandler(tasks.TypeMetricsRecord, tasks.NewMetricsRecordHandler(metricsStore, logger))

	go func() {
		if err := asynqServer.Start(); err != nil {
			logger.Error().Err(err).Msg("asynq server exited")
		}
	}()
	defer asynqServer.Shutdown()

	metricsEnqueuer := jobs.NewMetricsEnqueuer(asynqClient)
	metricsRecorder := metrics.NewRecorder(metricsEnqueuer)

	rateLimitStore := ratelimit.NewPostgresStore(db)
	limiter := ratelimit.New(rateLimitStore, cfg.RateLimitMaxRequests, cfg.RateLimitWindow())

	sweeper := ratelimit.NewSweeper(rateLimitStore, ratelimit.DefaultSweepInterval, logger)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go sweeper.Run(sweepCtx)
	defer stopSweeper()

	jobQueue := queue.New(cfg.QueueMax)

	workerPoolSize := cfg.WorkerPoolSize
	if workerPoolSize <= 0 {
		workerPoolSize = runtime.NumCPU() - 1
		if workerPoolSize < 1 {
			workerPoolSize = 1
		}
	}

	metricsCollector := middleware.NewMetricsCollector()

	workerPool := pool.New(workerPoolSize, convertProcessor, logger)
	workerPool.OnActiveWorkersChanged(metricsCollector.SetActiveWorkers)

	poolCtx, stopPool := context.WithCancel(context.Background())
	go workerPool.Run(poolCtx, jobQueue)
	defer stopPool()

	convertHandler := handlers.NewConvertHandler(jobQueue, metricsRecorder, cfg.JobTimeout(), logger)
	healthHandler := handlers.NewHealthHandler(db, redisClient, logger)
	adminHandler := handlers.NewAdminHandler(metricsStore, logger)

	router := handlers.NewRouter(handlers.RouterConfig{
		ConvertHandler:   convertHandler,
		HealthHandler:    healthHandler,
		AdminHandler:     adminHandler,
		Limiter:          limiter,
		MetricsCollector: metricsCollector,
		Logger:           logger,
		AdminPassword:    cfg.AdminPassword,
		CORSOrigins:      []string{cfg.CORSOrigin},
		IsProd:           cfg.LogLevel != "debug",
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown did not complete cleanly")
	}
}

// convertProcessor adapts the imaging pipeline (C2) to the worker pool's
// Processor signature (C4).
func convertProcessor(_ context.Context, payload interface{}) (interface{}, error) {
	job, ok := payload.(imaging.Job)
	if !ok {
		return nil, fmt.Errorf("unexpected job payload type %T", payload)
	}
	return imaging.Convert(job)
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).
		Level(parsed).
		With().
		Timestamp().
		Logger()
}

// redisConfigFromAddr splits a combined "host:port" address, as stored in
// config.Config, into the discrete Host/Port fields redis.NewClient expects.
func redisConfigFromAddr(addr, password string) redis.Config {
	cfg := redis.DefaultConfig()
	cfg.Password = password

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return cfg
	}
	cfg.Host = host
	if port, err := strconv.Atoi(portStr); err == nil {
		cfg.Port = port
	}
	return cfg
}
