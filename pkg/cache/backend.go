package cache

import (
	"context"
)

// Backend stores cache entries by serialized key.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend in metrics and logs (e.g., "memory", "redis").
	Name() string

	// Get returns the entry for key, or ErrCacheMiss if absent or expired.
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores the entry under key until it expires.
	// Entries that are already expired are not stored.
	Set(ctx context.Context, key string, entry *CacheEntry) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeletePrefix removes every key starting with prefix and reports how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Flush removes every entry written by this package.
	Flush(ctx context.Context) error
}
