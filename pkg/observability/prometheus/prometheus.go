// Package prometheus implements the observability hooks with Prometheus
// collectors.
//
// A [Metrics] value satisfies every hook interface in
// [github.com/matzehuels/pylock/pkg/observability]; register it once at
// startup and dump the registry at exit with [WriteFile]:
//
//	reg := prom.NewRegistry()
//	m := prometheus.New(reg)
//	observability.SetLockHooks(m)
//	observability.SetResolverHooks(m)
//	observability.SetCacheHooks(m)
//	observability.SetHTTPHooks(m)
//	defer prometheus.WriteFile("metrics.prom", reg)
package prometheus

import (
	"context"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/pylock/pkg/observability"
)

const namespace = "pylock"

// Metrics collects pylock events into Prometheus counters and histograms.
type Metrics struct {
	stageDuration   *prom.HistogramVec
	stageErrors     *prom.CounterVec
	rounds          prom.Counter
	backtracks      prom.Counter
	dependencyTiers *prom.CounterVec
	tierDuration    *prom.HistogramVec
	cacheEvents     *prom.CounterVec
	cacheBytes      *prom.CounterVec
	httpRequests    *prom.CounterVec
	httpDuration    *prom.HistogramVec
	httpErrors      *prom.CounterVec
}

var (
	_ observability.LockHooks     = (*Metrics)(nil)
	_ observability.ResolverHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.HTTPHooks     = (*Metrics)(nil)
)

// New creates the collectors and registers them with reg.
func New(reg prom.Registerer) *Metrics {
	m := &Metrics{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_stage_duration_seconds",
			Help:      "Time spent in each lock stage.",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		stageErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "lock_stage_errors_total",
			Help:      "Number of lock stages that failed.",
		}, []string{"stage"}),
		rounds: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_rounds_total",
			Help:      "Number of resolution rounds.",
		}),
		backtracks: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_backtracks_total",
			Help:      "Number of resolver backtracks.",
		}),
		dependencyTiers: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "provider_dependencies_total",
			Help:      "Dependency lookups by the discovery tier that answered them.",
		}, []string{"tier"}),
		tierDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_dependencies_duration_seconds",
			Help:      "Time taken to discover the dependencies of one candidate.",
			Buckets:   prom.DefBuckets,
		}, []string{"tier"}),
		cacheEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Cache hits, misses, writes and evictions.",
		}, []string{"cache", "event"}),
		cacheBytes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_written_bytes_total",
			Help:      "Bytes written to each cache.",
		}, []string{"cache"}),
		httpRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Index requests by host and status code.",
		}, []string{"host", "code"}),
		httpDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Index request latency.",
			Buckets:   prom.DefBuckets,
		}, []string{"host"}),
		httpErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Index requests that failed before a response arrived.",
		}, []string{"host"}),
	}
	reg.MustRegister(
		m.stageDuration, m.stageErrors,
		m.rounds, m.backtracks, m.dependencyTiers, m.tierDuration,
		m.cacheEvents, m.cacheBytes,
		m.httpRequests, m.httpDuration, m.httpErrors,
	)
	return m
}

// Register creates a Metrics on reg and installs it as every global hook.
func Register(reg prom.Registerer) *Metrics {
	m := New(reg)
	observability.SetLockHooks(m)
	observability.SetResolverHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
	return m
}

// WriteFile writes the metrics gathered by g to path in the text
// exposition format, atomically.
func WriteFile(path string, g prom.Gatherer) error {
	return prom.WriteToTextfile(path, g)
}

func (m *Metrics) OnStageStart(context.Context, string) {}

func (m *Metrics) OnStageComplete(_ context.Context, stage string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) OnRound(context.Context, int) { m.rounds.Inc() }

func (m *Metrics) OnBacktrack(context.Context, string) { m.backtracks.Inc() }

func (m *Metrics) OnDependencies(_ context.Context, _ string, tier string, d time.Duration) {
	if tier == "" {
		tier = "failed"
	}
	m.dependencyTiers.WithLabelValues(tier).Inc()
	m.tierDuration.WithLabelValues(tier).Observe(d.Seconds())
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheEvents.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (m *Metrics) OnCacheEvict(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "evict").Inc()
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, _ string, host, _ string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(host, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _ string, host, _ string, _ error) {
	m.httpErrors.WithLabelValues(host).Inc()
}
