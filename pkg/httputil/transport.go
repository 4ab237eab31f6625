package httputil

import (
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/pylock/pkg/observability"
)

// TransportOptions configures [NewTransport].
type TransportOptions struct {
	// UserAgent is sent with every request that does not set one.
	UserAgent string

	// TrustedHosts are reached without TLS verification. Entries are host
	// names, optionally with a port.
	TrustedHosts []string

	// Base is the transport requests are finally sent through. Defaults to
	// a clone of http.DefaultTransport.
	Base *http.Transport
}

// NewTransport returns a RoundTripper that applies opts and reports every
// request to the HTTP hooks.
func NewTransport(opts TransportOptions) http.RoundTripper {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	t := &transport{
		userAgent: opts.UserAgent,
		secure:    base,
		trusted:   make(map[string]bool),
	}
	if len(opts.TrustedHosts) > 0 {
		insecure := base.Clone()
		insecure.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		t.insecure = insecure
		for _, h := range opts.TrustedHosts {
			t.trusted[strings.ToLower(h)] = true
		}
	}
	return t
}

type transport struct {
	userAgent string
	secure    http.RoundTripper
	insecure  http.RoundTripper
	trusted   map[string]bool
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	rt := t.secure
	if t.isTrusted(req.URL.Host) {
		rt = t.insecure
	}

	ctx := req.Context()
	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()
	resp, err := rt.RoundTrip(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, err
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))
	return resp, nil
}

func (t *transport) isTrusted(hostport string) bool {
	if t.insecure == nil {
		return false
	}
	hostport = strings.ToLower(hostport)
	if t.trusted[hostport] {
		return true
	}
	host, _, err := net.SplitHostPort(hostport)
	return err == nil && t.trusted[host]
}
