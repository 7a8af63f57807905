package asynq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Client wraps the asynq.Client for background job enqueuing.
// It provides a type-safe interface for task creation with proper error handling.
type Client struct {
	client *asynq.Client
	logger zerolog.Logger
}

// ClientConfig holds configuration for the Asynq client.
type ClientConfig struct {
	// RedisAddr is the Redis server address (host:port).
	RedisAddr string

	// RedisPassword is the Redis password (optional).
	RedisPassword string

	// RedisDB is the Redis database number.
	RedisDB int

	// Logger is the structured logger for client operations.
	Logger zerolog.Logger
}

// NewClient creates a new Asynq client for enqueuing tasks.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(redisOpt)

	return &Client{
		client: client,
		logger: cfg.Logger,
	}, nil
}

// EnqueueTask enqueues a task with the given type and payload.
// This is a low-level method; jobs.MetricsEnqueuer wraps it for metric tasks.
func (c *Client) EnqueueTask(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	// Marshal payload to JSON
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}

	// Create task
	task := asynq.NewTask(taskType, payloadBytes, opts...)

	// Enqueue task
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("task_type", taskType).
			Msg("failed to enqueue task")
		return fmt.Errorf("enqueue task %s: %w", taskType, err)
	}

	c.logger.Info().
		Str("task_id", info.ID).
		Str("task_type", taskType).
		Str("queue", info.Queue).
		Time("scheduled_at", info.NextProcessAt).
		Msg("task enqueued successfully")

	return nil
}

// Close closes the Asynq client connection.
// This should be called during graceful shutdown.
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		c.logger.Error().
			Err(err).
			Msg("failed to close asynq client")
		return fmt.Errorf("close asynq client: %w", err)
	}

	c.logger.Info().Msg("asynq client closed")
	return nil
}
