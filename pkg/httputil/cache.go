package httputil

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/pylock/pkg/cache"
)

// JSONCache stores JSON-marshalable values in a [cache.Cache].
//
// Use [JSONCache.Namespace] to create scoped views that prefix keys, so
// responses from different endpoints never collide:
//
//	simple := c.Namespace("simple:")
//	release := c.Namespace("release:")
type JSONCache struct {
	backend cache.Cache
	ttl     time.Duration
	prefix  string
}

// NewJSONCache wraps backend. A ttl of 0 keeps entries until the backend
// evicts them.
func NewJSONCache(backend cache.Cache, ttl time.Duration) *JSONCache {
	return &JSONCache{backend: backend, ttl: ttl}
}

// TTL returns the time-to-live of new entries.
func (c *JSONCache) TTL() time.Duration { return c.ttl }

// Get decodes the value stored under key into v.
//
// It returns (false, nil) on a miss. An entry that no longer decodes is
// deleted and reported as a miss.
func (c *JSONCache) Get(ctx context.Context, key string, v any) (bool, error) {
	data, ok, err := c.backend.Get(ctx, c.prefix+key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		_ = c.backend.Delete(ctx, c.prefix+key)
		return false, nil
	}
	return true, nil
}

// Set stores v under key, refreshing its TTL.
func (c *JSONCache) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.backend.Set(ctx, c.prefix+key, data, c.ttl)
}

// Namespace returns a view of c whose keys are prefixed with prefix.
// Calls chain: c.Namespace("a:").Namespace("b:") prefixes with "a:b:".
func (c *JSONCache) Namespace(prefix string) *JSONCache {
	return &JSONCache{backend: c.backend, ttl: c.ttl, prefix: c.prefix + prefix}
}
