package interfaces

import (
	"context"
	"time"
)

// KeyValueStore is a shared string store with per-key expiry. A key whose TTL
// has elapsed is indistinguishable from a key that was never written.
type KeyValueStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes only when key is absent and reports whether it wrote
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// SetXX overwrites key and its TTL only when key is live and reports
	// whether it wrote. A key deleted concurrently is never recreated.
	SetXX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	// GetDel atomically reads and deletes key. Of any number of concurrent
	// callers for the same key, at most one observes found == true.
	GetDel(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, keys ...string) error
	// Expire resets the TTL of an existing key and reports whether it existed
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
