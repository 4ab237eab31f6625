// Package integrations provides the HTTP client shared by package index
// clients.
//
// # Overview
//
// The [pypi] subpackage talks to Python package indexes: the PEP 691 JSON
// simple API for file listings and the JSON per-release endpoint for
// dependency metadata. [pypitest] serves a fixture index for tests.
//
// # Shared Infrastructure
//
// [Client] bundles what every index client needs:
//
//   - response caching through [httputil.JSONCache] on any [cache.Cache]
//   - retries of transient failures with [httputil.RetryWithBackoff]
//   - the pylock user agent and trusted hosts (TLS verification skipped)
//   - artifact streaming via [Client.Open], used for hashing
//
// Index-specific errors wrap [ErrNotFound] and [ErrNetwork], so callers
// check them with errors.Is regardless of which index failed.
//
// [pypi]: github.com/matzehuels/pylock/pkg/integrations/pypi
// [pypitest]: github.com/matzehuels/pylock/pkg/integrations/pypi/pypitest
// [cache.Cache]: github.com/matzehuels/pylock/pkg/cache.Cache
// [httputil.JSONCache]: github.com/matzehuels/pylock/pkg/httputil.JSONCache
// [httputil.RetryWithBackoff]: github.com/matzehuels/pylock/pkg/httputil.RetryWithBackoff
package integrations
