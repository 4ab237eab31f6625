package cache

import (
	"context"
	"fmt"
)

// Backend names accepted by [Open].
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendNull   = "null"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Options selects and configures a cache backend.
type Options struct {
	Backend  string // one of the Backend* constants; empty means file
	Dir      string // root directory of the file backend
	RedisURL string
	MongoURI string
	// Prefix namespaces the keys of the shared Redis and MongoDB backends.
	Prefix string
}

// Open creates the backend described by opts.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", BackendFile:
		if opts.Dir == "" {
			return nil, fmt.Errorf("file cache: no directory")
		}
		return NewFileCache(opts.Dir)
	case BackendMemory:
		return NewMemoryCache(), nil
	case BackendNull:
		return NullCache{}, nil
	case BackendRedis:
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("redis cache: no url")
		}
		c, err := NewRedisCache(ctx, opts.RedisURL)
		if err != nil {
			return nil, err
		}
		return owned(c, opts.Prefix), nil
	case BackendMongo:
		if opts.MongoURI == "" {
			return nil, fmt.Errorf("mongo cache: no uri")
		}
		c, err := NewMongoCache(ctx, opts.MongoURI)
		if err != nil {
			return nil, err
		}
		return owned(c, opts.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
