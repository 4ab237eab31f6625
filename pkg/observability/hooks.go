// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about lock stages, resolver rounds, cache operations and
// index requests.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so library packages never
// import a metrics backend. The [prometheus] subpackage provides a ready-made
// implementation.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    m := prometheus.New(registry)
//	    observability.SetLockHooks(m)
//	    observability.SetCacheHooks(m)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Lock().OnStageStart(ctx, "resolving")
//	// ... resolve ...
//	observability.Lock().OnStageComplete(ctx, "resolving", duration, err)
//
// [prometheus]: github.com/matzehuels/pylock/pkg/observability/prometheus
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Lock Hooks
// =============================================================================

// LockHooks receives events from the locker state machine.
type LockHooks interface {
	// OnStageStart records entering a stage (resolving, tracing, ...).
	OnStageStart(ctx context.Context, stage string)

	// OnStageComplete records leaving a stage.
	OnStageComplete(ctx context.Context, stage string, duration time.Duration, err error)
}

// =============================================================================
// Resolver Hooks
// =============================================================================

// ResolverHooks receives events from the resolution engine and the
// candidate provider.
type ResolverHooks interface {
	// OnRound records the start of a resolution round.
	OnRound(ctx context.Context, round int)

	// OnBacktrack records a backtrack away from a pinned identifier.
	OnBacktrack(ctx context.Context, id string)

	// OnDependencies records which discovery tier produced the dependencies
	// of a candidate. tier is empty when every tier failed.
	OnDependencies(ctx context.Context, id, tier string, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)

	// OnCacheEvict records the removal of an invalid entry.
	OnCacheEvict(ctx context.Context, keyType string)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopLockHooks is a no-op implementation of LockHooks.
type NoopLockHooks struct{}

func (NoopLockHooks) OnStageStart(context.Context, string)                          {}
func (NoopLockHooks) OnStageComplete(context.Context, string, time.Duration, error) {}

// NoopResolverHooks is a no-op implementation of ResolverHooks.
type NoopResolverHooks struct{}

func (NoopResolverHooks) OnRound(context.Context, int)                                  {}
func (NoopResolverHooks) OnBacktrack(context.Context, string)                           {}
func (NoopResolverHooks) OnDependencies(context.Context, string, string, time.Duration) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}
func (NoopCacheHooks) OnCacheEvict(context.Context, string)    {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	lockHooks     LockHooks     = NoopLockHooks{}
	resolverHooks ResolverHooks = NoopResolverHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetLockHooks registers custom lock hooks.
// This should be called once at application startup before any lock operations.
func SetLockHooks(h LockHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		lockHooks = h
	}
}

// SetResolverHooks registers custom resolver hooks.
func SetResolverHooks(h ResolverHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		resolverHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Lock returns the registered lock hooks.
func Lock() LockHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return lockHooks
}

// Resolver returns the registered resolver hooks.
func Resolver() ResolverHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return resolverHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	lockHooks = NoopLockHooks{}
	resolverHooks = NoopResolverHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
