package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coreerrors "vaultdex/core/errors"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// DexMetrics tracks marketplace operations executed by the node.
type DexMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	active     prometheus.Gauge
	sales      prometheus.Counter
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	dexMetricsOnce sync.Once
	dexRegistry    *DexMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vdx",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vdx",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "vdx",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vdx",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a JSON-RPC request. code is the JSON-RPC
// error code, or zero on success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, strconv.Itoa(code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Dex returns the marketplace metrics registry.
func Dex() *DexMetrics {
	dexMetricsOnce.Do(func() {
		dexRegistry = &DexMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vdx",
				Subsystem: "dex",
				Name:      "operations_total",
				Help:      "Marketplace operations segmented by operation and outcome kind.",
			}, []string{"op", "outcome"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "vdx",
				Subsystem: "dex",
				Name:      "operation_duration_seconds",
				Help:      "Time spent executing a marketplace operation, commit included.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			active: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "vdx",
				Subsystem: "dex",
				Name:      "listings_active",
				Help:      "Number of listings currently holding an asset in custody.",
			}),
			sales: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "vdx",
				Subsystem: "dex",
				Name:      "swaps_settled_total",
				Help:      "Atomic swaps committed.",
			}),
		}
		prometheus.MustRegister(
			dexRegistry.operations,
			dexRegistry.duration,
			dexRegistry.active,
			dexRegistry.sales,
		)
	})
	return dexRegistry
}

// Observe records one operation. The outcome label is the error kind of err,
// "ok" on success.
func (m *DexMetrics) Observe(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	op = strings.TrimSpace(op)
	if op == "" {
		op = "unknown"
	}
	m.operations.WithLabelValues(op, coreerrors.KindName(err)).Inc()
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetActiveListings publishes the committed number of active listings.
func (m *DexMetrics) SetActiveListings(n uint64) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}

// RecordSwap counts a committed swap.
func (m *DexMetrics) RecordSwap() {
	if m == nil {
		return
	}
	m.sales.Inc()
}
