package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/notifications/internal/infrastructure/config"
	"github.com/cassiomorais/notifications/pkg/retry"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis, retrying the first ping with backoff so the
// api and worker can start before Redis is up.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := retry.Do(ctx, connectRetry(cfg.ConnectRetries, cfg.ConnectRetryDelay), func() error {
		return client.Ping(ctx).Err()
	}); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr(), err)
	}
	return client, nil
}

func connectRetry(attempts int, delay time.Duration) retry.Config {
	if attempts <= 0 {
		attempts = 5
	}
	if delay <= 0 {
		delay = time.Second
	}
	return retry.Config{
		MaxAttempts:  uint(attempts),
		InitialDelay: delay,
		MaxDelay:     10 * delay,
		Multiplier:   2,
	}
}
