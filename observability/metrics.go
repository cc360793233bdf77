package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

type ledgerMetrics struct {
	blocks       prometheus.Counter
	height       prometheus.Gauge
	transactions *prometheus.CounterVec
	applyLatency *prometheus.HistogramVec
	indexErrors  prometheus.Counter
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mpachain",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mpachain",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "mpachain",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mpachain",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of module requests rejected due to throttling policies.",
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

// Observe records the outcome of a module request. A zero code means success;
// otherwise it is the JSON-RPC error code returned to the caller.
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
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
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

// Ledger returns the metrics registry for block production and transaction
// execution.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			blocks: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mpachain",
				Subsystem: "ledger",
				Name:      "blocks_total",
				Help:      "Count of sealed blocks.",
			}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "mpachain",
				Subsystem: "ledger",
				Name:      "height",
				Help:      "Height of the latest sealed block.",
			}),
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mpachain",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Sealed transactions segmented by type and status.",
			}, []string{"type", "status"}),
			applyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "mpachain",
				Subsystem: "ledger",
				Name:      "apply_duration_seconds",
				Help:      "Time spent executing and sealing a transaction.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"type"}),
			indexErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mpachain",
				Subsystem: "ledger",
				Name:      "index_errors_total",
				Help:      "Receipts the event index failed to record.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.blocks,
			ledgerRegistry.height,
			ledgerRegistry.transactions,
			ledgerRegistry.applyLatency,
			ledgerRegistry.indexErrors,
		)
	})
	return ledgerRegistry
}

// RecordBlock tracks a sealed block carrying a transaction of txType.
func (m *ledgerMetrics) RecordBlock(height uint64, txType string, succeeded bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !succeeded {
		status = "failed"
	}
	m.blocks.Inc()
	m.height.Set(float64(height))
	m.transactions.WithLabelValues(txType, status).Inc()
	m.applyLatency.WithLabelValues(txType).Observe(duration.Seconds())
}

// RecordIndexError counts a receipt that could not be written to the index.
func (m *ledgerMetrics) RecordIndexError() {
	if m == nil {
		return
	}
	m.indexErrors.Inc()
}
