package redis

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/tahahayali/type-int--disasterRecovery/internal/config"
)

// Client aliases the go-redis client so callers only import this package.
type Client = redis.Client

// NewClient builds a Redis client from the service configuration.
func NewClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping verifies the connection.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close closes the client, tolerating nil.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
