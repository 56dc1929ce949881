package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReceiptCache implements ports.ReceiptCache using Redis.
type ReceiptCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewReceiptCache creates a Redis-backed transfer receipt cache.
func NewReceiptCache(client goredis.UniversalClient) *ReceiptCache {
	return &ReceiptCache{
		client: client,
		prefix: "receipt:",
	}
}

// Get retrieves a cached receipt by transfer ID.
// Returns nil, nil if the key does not exist.
func (c *ReceiptCache) Get(ctx context.Context, transferID string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+transferID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis receipt get: %w", err)
	}
	return val, nil
}

// Set stores a receipt with TTL.
func (c *ReceiptCache) Set(ctx context.Context, transferID string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+transferID, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis receipt set: %w", err)
	}
	return nil
}
