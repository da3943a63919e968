// Package cache stores oracle answers so repeated queries skip the network.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/askmap/diagnostic-engine/internal/config"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

const defaultPrefix = "dx:"

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// New builds the client selected by the configuration.
func New(cfg config.CacheConfig) (Client, error) {
	if cfg.Driver == "redis" {
		return NewRedisClient(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
	}
	return NewMemoryClient(cfg.MaxEntries), nil
}

// Key joins key parts with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
