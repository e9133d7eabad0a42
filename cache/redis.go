package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultKeyPrefix = "ed25519_relay:seen:"

// RedisCache is a Redis-based cache implementation, shared across relay replicas
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a new Redis cache and checks connectivity
func NewRedisCache(config RedisConfig) (*RedisCache, error) {
	opts := &redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	if config.EnableTLS {
		if config.TLSConfig != nil {
			opts.TLSConfig = config.TLSConfig
		} else {
			opts.TLSConfig = &tls.Config{
				InsecureSkipVerify: config.TLSSkipVerify,
			}
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &RedisCache{
		client: client,
		prefix: prefix,
	}, nil
}

// Remember stores key with SETNX so concurrent replicas agree on the first writer
func (c *RedisCache) Remember(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	stored, err := c.client.SetNX(ctx, c.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set Redis key: %w", err)
	}
	return stored, nil
}

// Forget deletes key
func (c *RedisCache) Forget(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete Redis key: %w", err)
	}
	return nil
}

// Close closes the cache and releases resources
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Address       string
	Password      string
	DB            int
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	EnableTLS     bool
	TLSSkipVerify bool
	TLSConfig     *tls.Config
	KeyPrefix     string
}
