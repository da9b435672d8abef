// Package cache provides the plan cache used to skip repeated LLM planning
// calls for identical questions.
package cache

import (
	"context"
	"log"
	"sync"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
)

// InMemoryCache provides a simple thread-safe in-memory cache with TTL.
type InMemoryCache struct {
	store map[string]cacheItem
	mutex sync.RWMutex
	ttl   time.Duration
	stop  chan struct{}
}

type cacheItem struct {
	value      interface{}
	expiration int64
}

// InMemoryCacheOption configures an InMemoryCache.
type InMemoryCacheOption func(*InMemoryCache)

// WithTTL sets the item lifetime.
func WithTTL(ttl time.Duration) InMemoryCacheOption {
	return func(c *InMemoryCache) {
		c.ttl = ttl
	}
}

// NewInMemoryCache creates a new in-memory cache and starts its background
// cleanup loop.
func NewInMemoryCache(options ...InMemoryCacheOption) *InMemoryCache {
	c := &InMemoryCache{
		store: make(map[string]cacheItem),
		ttl:   30 * time.Minute,
		stop:  make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}
	go c.cleanupLoop(10 * time.Minute)
	return c
}

// Get retrieves an item from the cache.
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return nil, err
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, found := c.store[key]
	if !found {
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache item not found", nil))
	}

	if time.Now().UnixNano() > item.expiration {
		// Lazy cleanup handles the expired entry on the next sweep
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache item expired", nil))
	}

	return item.value, nil
}

// Set adds or updates an item in the cache.
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}) error {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.store[key] = cacheItem{
		value:      value,
		expiration: time.Now().Add(c.ttl).UnixNano(),
	}
	return nil
}

// Close stops the background cleanup loop.
func (c *InMemoryCache) Close() {
	close(c.stop)
}

// cleanupLoop periodically removes expired items.
func (c *InMemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mutex.Lock()
			now := time.Now().UnixNano()
			for key, item := range c.store {
				if now > item.expiration {
					delete(c.store, key)
				}
			}
			c.mutex.Unlock()
		}
	}
}

// Adapter bridges InMemoryCache to the ok-style cache contract used by the
// planner.
type Adapter struct {
	inner *InMemoryCache
}

// NewAdapter wraps an InMemoryCache.
func NewAdapter(inner *InMemoryCache) *Adapter {
	return &Adapter{inner: inner}
}

// Get returns the cached value and whether it was present.
func (a *Adapter) Get(ctx context.Context, key string) (any, bool) {
	value, err := a.inner.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	return value, true
}

// Set stores a value, logging failures instead of surfacing them: a cache
// write failure must never fail a run.
func (a *Adapter) Set(ctx context.Context, key string, value any) {
	if err := a.inner.Set(ctx, key, value); err != nil {
		log.Printf("cache set failed (key: %s): %v", key, err)
	}
}
