package cache

import (
	"context"
	"time"
)

// Cache remembers keys for a bounded time. The relay keys it by accepted
// signature to reject replayed requests.
type Cache interface {
	// Remember stores key for ttl and reports whether it was newly stored.
	// A false result means the key was already present.
	Remember(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Forget removes key. Forgetting an unknown key is not an error.
	Forget(ctx context.Context, key string) error

	// Close closes the cache and releases resources
	Close() error
}
