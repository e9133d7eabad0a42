package cache

import (
	"context"
	"time"
)

// NoOpCache is a no-op cache implementation used when replay protection is disabled.
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache instance.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Remember reports every key as new and stores nothing.
func (c *NoOpCache) Remember(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

// Forget does nothing.
func (c *NoOpCache) Forget(ctx context.Context, key string) error {
	return nil
}

// Close is a no-op that does not release any resources.
func (c *NoOpCache) Close() error {
	return nil
}
