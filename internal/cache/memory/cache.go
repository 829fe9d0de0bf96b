// Package memory is the in-process cache backend. Expiry is lazy: an
// expired entry behaves as a miss on Get and is purged right there; no
// background sweeper runs.
package memory

import (
	"context"
	"sync"
	"time"
)

type item struct {
	value     []byte
	expiresAt time.Time
}

// Cache - in-memory TTL кеш
type Cache struct {
	mu    sync.Mutex
	items map[string]item

	// now is swappable in tests
	now func() time.Time
}

func New() *Cache {
	return &Cache{
		items: make(map[string]item),
		now:   time.Now,
	}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if c.now().After(it.expiresAt) {
		delete(c.items, key)
		return nil, false, nil
	}
	return it.value, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.items[key] = item{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

func (c *Cache) Close() error {
	return nil
}

// Len is used by tests and the status endpoint.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
