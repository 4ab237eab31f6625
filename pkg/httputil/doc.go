// Package httputil provides the HTTP plumbing shared by index clients.
//
// # Overview
//
//   - [JSONCache]: JSON values on top of any [cache.Cache] backend
//   - [Retry]: automatic retry with exponential backoff
//   - [NewTransport]: user agent, trusted hosts and request hooks
//
// # Caching
//
// [JSONCache] stores decoded index responses with a TTL so repeated locks
// do not hit the index again:
//
//	responses := httputil.NewJSONCache(backend, time.Hour).Namespace("pypi:")
//	var page simplePage
//	if ok, _ := responses.Get(ctx, "requests", &page); !ok {
//	    page = fetch()
//	    responses.Set(ctx, "requests", page)
//	}
//
// # Retry
//
// [Retry] retries transient failures: network errors, 5xx responses and
// 429 rate limits, once wrapped in [RetryableError] by the caller:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    return fetch()
//	})
//
// # Trusted hosts
//
// Sources declared with verify_ssl = false, or hosts passed with
// --trusted-host, are reached without TLS certificate verification. Every
// other host keeps the default verification.
package httputil
