package cache

import (
	"context"
	"os"

	pio "github.com/matzehuels/pylock/pkg/io"
)

// Document is a store for one blob, such as the dependency cache file.
type Document interface {
	// Load returns the stored blob and whether it exists.
	Load(ctx context.Context) ([]byte, bool, error)

	// Save replaces the stored blob.
	Save(ctx context.Context, data []byte) error
}

// FileDocument keeps a blob in a single file. Saves are atomic, so the file
// is always valid even when the process is interrupted.
type FileDocument struct {
	Path string
}

// Load reads the file. A missing file is not an error.
func (d FileDocument) Load(context.Context) ([]byte, bool, error) {
	data, err := os.ReadFile(d.Path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Save writes the file atomically.
func (d FileDocument) Save(_ context.Context, data []byte) error {
	return pio.WriteFileAtomic(d.Path, data)
}

// CacheDocument keeps a blob under one key of a [Cache] without expiry.
type CacheDocument struct {
	Cache Cache
	Key   string
}

func (d CacheDocument) Load(ctx context.Context) ([]byte, bool, error) {
	return d.Cache.Get(ctx, d.Key)
}

func (d CacheDocument) Save(ctx context.Context, data []byte) error {
	return d.Cache.Set(ctx, d.Key, data, 0)
}
