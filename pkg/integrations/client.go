package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/pylock/pkg/cache"
	"github.com/matzehuels/pylock/pkg/httputil"
)

// Client provides shared HTTP functionality for index clients.
// It handles caching, retry logic, and common request headers.
type Client struct {
	http    *http.Client
	cache   *httputil.JSONCache
	headers map[string]string
}

// NewClient creates a Client whose responses are cached in backend under
// namespace for ttl. Headers are applied to all requests made through this
// client. Pass nil for headers if no default headers are needed.
func NewClient(backend cache.Cache, namespace string, ttl time.Duration, headers map[string]string) *Client {
	if backend == nil {
		backend = cache.NullCache{}
	}
	return &Client{
		http:    NewHTTPClient(),
		cache:   httputil.NewJSONCache(backend, ttl).Namespace(namespace),
		headers: headers,
	}
}

// WithTrustedHosts returns a copy of c that skips TLS verification for
// hosts.
func (c *Client) WithTrustedHosts(hosts ...string) *Client {
	cp := *c
	cp.http = NewHTTPClient(hosts...)
	return &cp
}

// WithHTTPClient returns a copy of c that sends requests through hc.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.http = hc
	return &cp
}

// Cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// The fetch function should populate v; on success, v is stored in the cache.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	if !refresh {
		if ok, _ := c.cache.Get(ctx, key, v); ok {
			return nil
		}
	}
	if err := httputil.RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	_ = c.cache.Set(ctx, key, v)
	return nil
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := c.doRequest(ctx, url, headers)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// GetText performs an HTTP GET request and returns the response body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.doRequest(ctx, url, nil)
	if err != nil {
		return "", err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	return string(data), err
}

// Open streams the body at url, retrying transient failures before the
// first byte. The content is requested without transfer compression so
// it can be hashed as published.
func (c *Client) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := httputil.RetryWithBackoff(ctx, func() error {
		var err error
		body, err = c.doRequest(ctx, url, map[string]string{"Accept-Encoding": "identity"})
		return err
	})
	return body, err
}

func (c *Client) doRequest(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return resp.Body, nil
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case httputil.TransientStatus(code):
		after := httputil.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return httputil.RetryableAfter(fmt.Errorf("%w: status %d", ErrNetwork, code), after)
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

var _ cache.Opener = (*Client)(nil)
