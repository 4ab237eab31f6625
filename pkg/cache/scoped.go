package cache

import (
	"context"
	"time"
)

// scoped prefixes every key so several logical caches can share one
// backend, e.g. "http:pypi:" responses and "hash:" digests in one Redis.
type scoped struct {
	inner  Cache
	prefix string
	owns   bool
}

// Scoped returns a view of c whose keys are prefixed with prefix. Closing
// the view does not close c.
func Scoped(c Cache, prefix string) Cache {
	if s, ok := c.(*scoped); ok {
		return &scoped{inner: s.inner, prefix: s.prefix + prefix}
	}
	return &scoped{inner: c, prefix: prefix}
}

// owned is Scoped for a backend the view is responsible for; closing the
// view closes c.
func owned(c Cache, prefix string) Cache {
	if prefix == "" {
		return c
	}
	return &scoped{inner: c, prefix: prefix, owns: true}
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.inner.Set(ctx, s.prefix+key, data, ttl)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

func (s *scoped) Close() error {
	if s.owns {
		return s.inner.Close()
	}
	return nil
}
