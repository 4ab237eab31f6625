// Package cache provides the persistent stores used while locking.
//
// # Backends
//
// [Cache] is a byte-oriented key/value interface with optional expiry.
// Implementations:
//
//   - [FileCache]: one JSON envelope per key under a directory (CLI default)
//   - [MemoryCache]: process-local map, used by tests
//   - [NullCache]: stores nothing
//   - [RedisCache]: shared cache in Redis
//   - [MongoCache]: shared cache in a MongoDB collection
//
// [Scoped] namespaces the keys of any backend, and [Open] selects a backend
// from [Options].
//
// # Domain caches
//
// [DependencyCache] maps exact pins to their dependency lines and lives in a
// single [Document] (depcache-py<X.Y>.json). [HashCache] maps artifact URLs
// to content hashes on top of a [Cache].
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store with optional per-entry expiry.
// A ttl of zero stores the entry without expiry.
type Cache interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
