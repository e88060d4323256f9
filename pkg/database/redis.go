package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quill-data/quill-engine/pkg/config"
)

// NewRedisClient creates the rate-limit counter client. Returns nil
// (no error) when Redis is not configured; the limiter fails open
// without it.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
