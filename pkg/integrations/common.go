package integrations

import (
	"errors"
	"net/http"
	"time"

	"github.com/matzehuels/pylock/pkg/buildinfo"
	"github.com/matzehuels/pylock/pkg/httputil"
)

const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the index.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout, the pylock
// user agent, and TLS verification disabled for trustedHosts.
func NewHTTPClient(trustedHosts ...string) *http.Client {
	return &http.Client{
		Timeout: httpTimeout,
		Transport: httputil.NewTransport(httputil.TransportOptions{
			UserAgent:    buildinfo.UserAgent(),
			TrustedHosts: trustedHosts,
		}),
	}
}
