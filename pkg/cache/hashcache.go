package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/matzehuels/pylock/pkg/observability"
)

// HashCacheDir is the directory name of the hash cache below the cache root.
const HashCacheDir = "hash-cache"

const hashChunk = 8096

// Opener streams the content behind a URL.
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// HashCache remembers the content hashes of artifacts so they are not
// downloaded again on the next lock. Only URLs that carry a hash fragment
// are remembered, since their content cannot change under the same key.
type HashCache struct {
	cache  Cache
	opener Opener
}

// NewHashCache creates a hash cache on c. Remote artifacts are streamed
// through opener; nil uses a plain HTTP client.
func NewHashCache(c Cache, opener Opener) *HashCache {
	if opener == nil {
		opener = httpOpener{client: &http.Client{}}
	}
	return &HashCache{cache: c, opener: opener}
}

// GetHash returns "sha256:<hex>" for the artifact at link.
func (h *HashCache) GetHash(ctx context.Context, link string) (string, error) {
	link = stripVCSScheme(link)
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse artifact url: %w", err)
	}
	cacheable := hasHashFragment(u)
	if cacheable {
		if v, ok, err := h.cache.Get(ctx, link); err == nil && ok {
			observability.Cache().OnCacheHit(ctx, "hash")
			return string(v), nil
		}
		observability.Cache().OnCacheMiss(ctx, "hash")
	}

	sum, err := h.digest(ctx, u)
	if err != nil {
		return "", err
	}
	if cacheable {
		if err := h.cache.Set(ctx, link, []byte(sum), 0); err == nil {
			observability.Cache().OnCacheSet(ctx, "hash", len(sum))
		}
	}
	return sum, nil
}

func (h *HashCache) digest(ctx context.Context, u *url.URL) (string, error) {
	bare := *u
	bare.Fragment = ""
	var (
		r   io.ReadCloser
		err error
	)
	if bare.Scheme == "file" {
		r, err = openLocal(bare.Path)
	} else {
		r, err = h.opener.Open(ctx, bare.String())
	}
	if err != nil {
		return "", err
	}
	defer r.Close()

	sum := sha256.New()
	buf := make([]byte, hashChunk)
	if _, err := io.CopyBuffer(sum, r, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", bare.String(), err)
	}
	return "sha256:" + hex.EncodeToString(sum.Sum(nil)), nil
}

func openLocal(path string) (io.ReadCloser, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("cannot open directory for read: %s", path)
	}
	return os.Open(path)
}

func hasHashFragment(u *url.URL) bool {
	algo, digest, ok := strings.Cut(u.Fragment, "=")
	if !ok || digest == "" {
		return false
	}
	switch algo {
	case "md5", "sha1", "sha224", "sha256", "sha384", "sha512":
		return true
	}
	return false
}

// stripVCSScheme turns git+https://... into https://...
func stripVCSScheme(link string) string {
	scheme, rest, ok := strings.Cut(link, "+")
	if !ok || strings.Contains(scheme, ":") {
		return link
	}
	switch scheme {
	case "git", "hg", "svn", "bzr":
		return rest
	}
	return link
}

type httpOpener struct {
	client *http.Client
}

func (o httpOpener) Open(ctx context.Context, link string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download %s: status %d", link, resp.StatusCode)
	}
	return resp.Body, nil
}
