package cache

import (
	"context"
	"time"
)

// NullCache never stores anything. It backs caches that were disabled,
// e.g. by PYLOCK_NO_DEPCACHE.
type NullCache struct{}

// Get always misses.
func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set discards data.
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete does nothing.
func (NullCache) Delete(context.Context, string) error { return nil }

// Close does nothing.
func (NullCache) Close() error { return nil }

var _ Cache = NullCache{}
