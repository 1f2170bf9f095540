package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/illmade-knight/go-sensormapper/pkg/decoder"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ListPusher is the subset of *redis.Client used by RedisSink.
type ListPusher interface {
	Ping(ctx context.Context) *redis.StatusCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// NewRedisClient creates a client for cfg. The connection is checked when the
// sink starts.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisSink appends encoded Records to a Redis list acting as a work queue.
type RedisSink struct {
	client ListPusher
	queue  string
	logger zerolog.Logger
}

// NewRedisSink creates a sink pushing onto the list named queue.
func NewRedisSink(client ListPusher, queue string, logger zerolog.Logger) (*RedisSink, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if queue == "" {
		return nil, errors.New("redis queue name is required")
	}
	return &RedisSink{
		client: client,
		queue:  queue,
		logger: logger.With().Str("component", "RedisSink").Str("queue", queue).Logger(),
	}, nil
}

// Start pings the server.
func (s *RedisSink) Start(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.logger.Info().Msg("Connected to Redis.")
	return nil
}

func (s *RedisSink) Emit(ctx context.Context, reading decoder.Reading, ts time.Time) error {
	rec := NewRecord(reading, ts).Encode()
	if err := s.client.RPush(ctx, s.queue, rec).Err(); err != nil {
		return fmt.Errorf("redis RPUSH to %s failed: %w", s.queue, err)
	}
	s.logger.Debug().Str("record", rec).Msg("Queued record.")
	return nil
}

// Stop is a no-op; the client's lifecycle is managed by its creator.
func (s *RedisSink) Stop(_ context.Context) error {
	return nil
}
