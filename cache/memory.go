package cache

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCacheFull is returned by Remember when every slot holds an unexpired key.
var ErrCacheFull = errors.New("cache is full")

type memoryEntry struct {
	key       string
	expiresAt time.Time
}

// MemoryCache is an in-memory cache implementation. A key is never dropped
// before its ttl ends: when full, an expired entry is reclaimed (the least
// recently remembered one first when LRU is enabled) and Remember fails with
// ErrCacheFull if there is none.
type MemoryCache struct {
	mu        sync.Mutex
	entries   map[string]*list.Element
	order     *list.List // front is oldest
	maxSize   int
	enableLRU bool
	cleanup   *time.Ticker
	stop      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(maxSize int, cleanupInterval time.Duration, enableLRU bool) *MemoryCache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}

	c := &MemoryCache{
		entries:   make(map[string]*list.Element),
		order:     list.New(),
		maxSize:   maxSize,
		enableLRU: enableLRU,
		cleanup:   time.NewTicker(cleanupInterval),
		stop:      make(chan struct{}),
		now:       time.Now,
	}

	go c.cleanupExpired()

	return c
}

// Remember stores key unless it is already present and unexpired
func (c *MemoryCache) Remember(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		if !now.After(el.Value.(*memoryEntry).expiresAt) {
			if c.enableLRU {
				c.order.MoveToBack(el)
			}
			return false, nil
		}
		c.removeElement(el)
	}

	if len(c.entries) >= c.maxSize && !c.evictExpired(now) {
		return false, ErrCacheFull
	}

	el := c.order.PushBack(&memoryEntry{key: key, expiresAt: now.Add(ttl)})
	c.entries[key] = el

	return true, nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close closes the cache and releases resources
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		c.cleanup.Stop()
		close(c.stop)

		c.mu.Lock()
		c.entries = make(map[string]*list.Element)
		c.order.Init()
		c.mu.Unlock()
	})
	return nil
}

// Forget removes key so it can be remembered again
func (c *MemoryCache) Forget(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
	return nil
}

// evictExpired frees one slot held by an expired entry and reports whether it
// found one. Caller holds mu.
func (c *MemoryCache) evictExpired(now time.Time) bool {
	for el := c.order.Front(); el != nil; el = el.Next() {
		if now.After(el.Value.(*memoryEntry).expiresAt) {
			c.removeElement(el)
			return true
		}
	}
	return false
}

func (c *MemoryCache) removeElement(el *list.Element) {
	delete(c.entries, el.Value.(*memoryEntry).key)
	c.order.Remove(el)
}

// cleanupExpired periodically removes expired entries
func (c *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-c.cleanup.C:
			c.mu.Lock()
			now := c.now()
			for el := c.order.Front(); el != nil; {
				next := el.Next()
				if now.After(el.Value.(*memoryEntry).expiresAt) {
					c.removeElement(el)
				}
				el = next
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}
