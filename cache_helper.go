package relay

import (
	"github.com/dawitel/ed25519-relay/cache"
)

// newReplayCache creates the replay guard store from the configuration
func newReplayCache(cfg ReplayConfig) (cache.Cache, error) {
	if !cfg.Enabled {
		return cache.NewNoOpCache(), nil
	}

	return cache.NewCache(cache.CacheConfig{
		Enabled: cfg.Enabled,
		Type:    cfg.Type,
		Memory: cache.MemoryConfig{
			MaxSize:         cfg.Memory.MaxSize,
			CleanupInterval: cfg.Memory.CleanupInterval,
			EnableLRU:       cfg.Memory.EnableLRU,
		},
		Redis: cache.RedisConfig{
			Address:       cfg.Redis.Address,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			MinIdleConns:  cfg.Redis.MinIdleConns,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
			EnableTLS:     cfg.Redis.EnableTLS,
			TLSSkipVerify: cfg.Redis.TLSSkipVerify,
			TLSConfig:     cfg.Redis.TLSConfig,
		},
	})
}
