package cache

import (
	"fmt"
	"time"
)

const (
	defaultCleanupInterval = 1 * time.Minute
	defaultMaxSize         = 10000
)

const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// CacheConfig represents the cache configuration
type CacheConfig struct {
	Enabled bool
	Type    string // "redis" or "memory"
	Redis   RedisConfig
	Memory  MemoryConfig
}

// MemoryConfig represents memory cache configuration
type MemoryConfig struct {
	MaxSize         int
	CleanupInterval time.Duration
	EnableLRU       bool
}

// NewCache creates a cache instance based on the configuration
func NewCache(cfg CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return NewNoOpCache(), nil
	}

	switch cfg.Type {
	case TypeMemory, "":
		return NewMemoryCache(
			cfg.Memory.MaxSize,
			cfg.Memory.CleanupInterval,
			cfg.Memory.EnableLRU,
		), nil

	case TypeRedis:
		if cfg.Redis.Address == "" {
			return nil, fmt.Errorf("redis address is required for redis cache")
		}
		return NewRedisCache(cfg.Redis)

	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
