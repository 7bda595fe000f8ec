package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns nil when no address is configured; callers treat a
// nil client as "leases disabled".
func NewRedisClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	if cfg.RedisAddress == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: max(10, 2*cfg.WorkerConcurrency),
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddress, err)
	}
	return client, nil
}
