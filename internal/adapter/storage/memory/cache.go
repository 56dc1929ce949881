package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time
}

// TTLCache is an expiring key/value map. It serves as the ports.ReceiptCache
// and ports.NonceStore when Redis is not configured.
type TTLCache struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

// NewTTLCache creates an empty cache.
func NewTTLCache() *TTLCache {
	return &TTLCache{items: make(map[string]entry), now: time.Now}
}

// Get returns the stored value or nil when absent or expired.
func (c *TTLCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, nil
	}
	if c.now().After(e.expires) {
		delete(c.items, key)
		return nil, nil
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores value under key for ttl.
func (c *TTLCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry{value: append([]byte(nil), value...), expires: c.now().Add(ttl)}
	return nil
}

// CheckAndSet records nonce under scope and reports whether it was unseen.
func (c *TTLCache) CheckAndSet(_ context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	key := "nonce:" + scope + ":" + nonce

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok && !c.now().After(e.expires) {
		return false, nil
	}
	c.items[key] = entry{value: []byte{1}, expires: c.now().Add(ttl)}
	return true, nil
}

// Sweep drops expired entries.
func (c *TTLCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.items {
		if now.After(e.expires) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}
