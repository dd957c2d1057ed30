package notify

import (
	"context"
	"time"
)

// Store is the transient TTL-keyed cache backing the queue. Any
// key-value store with get/set/delete-with-expiration and
// append-to-list-under-key satisfies the contract; a Redis instance
// and an in-memory map with a reaper are both provided.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns (nil, false, nil) for a missing or expired key.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	PushList(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetList(ctx context.Context, key string) ([][]byte, error)
}
