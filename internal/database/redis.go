package database

import (
	"context"
	"fmt"
	"time"

	"github.com/irfndi/celebrum-ledger/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisClient carries the connection used for cross-replica cache
// invalidation and cache analytics.
type RedisClient struct {
	Client *redis.Client
}

func NewRedisConnection(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logrus.WithField("addr", rdb.Options().Addr).Info("Successfully connected to Redis")

	return &RedisClient{Client: rdb}, nil
}

func (r *RedisClient) Close() {
	if r.Client != nil {
		_ = r.Client.Close()
		logrus.Info("Redis connection closed")
	}
}

func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}
