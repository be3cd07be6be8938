package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records ledger operation activity: settled mints and burns,
// throttled attempts, pause transitions, and API handler latency.
type LedgerMetrics struct {
	mints     *prometheus.CounterVec
	burns     *prometheus.CounterVec
	transfers prometheus.Counter
	throttles *prometheus.CounterVec
	pauses    *prometheus.CounterVec
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Metrics returns the lazily-initialised ledger metrics registry.
func Metrics() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			mints: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bridgeledger",
				Subsystem: "token",
				Name:      "mints_total",
				Help:      "Total settled mints segmented by outcome.",
			}, []string{"outcome"}),
			burns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bridgeledger",
				Subsystem: "token",
				Name:      "burns_total",
				Help:      "Total settled burns segmented by outcome.",
			}, []string{"outcome"}),
			transfers: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "bridgeledger",
				Subsystem: "token",
				Name:      "transfers_total",
				Help:      "Total settled balance transfers.",
			}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bridgeledger",
				Subsystem: "limits",
				Name:      "throttles_total",
				Help:      "Count of operations rejected by rate limiting or pause policies.",
			}, []string{"reason"}),
			pauses: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bridgeledger",
				Subsystem: "pause",
				Name:      "transitions_total",
				Help:      "Pause state machine transitions segmented by kind.",
			}, []string{"kind"}),
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bridgeledger",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route and outcome.",
			}, []string{"route", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "bridgeledger",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.mints,
			ledgerRegistry.burns,
			ledgerRegistry.transfers,
			ledgerRegistry.throttles,
			ledgerRegistry.pauses,
			ledgerRegistry.requests,
			ledgerRegistry.latency,
		)
	})
	return ledgerRegistry
}

// RecordMint increments the mint counter for the supplied outcome.
func (m *LedgerMetrics) RecordMint(success bool) {
	if m == nil {
		return
	}
	m.mints.WithLabelValues(outcome(success)).Inc()
}

// RecordBurn increments the burn counter for the supplied outcome.
func (m *LedgerMetrics) RecordBurn(success bool) {
	if m == nil {
		return
	}
	m.burns.WithLabelValues(outcome(success)).Inc()
}

// RecordTransfer increments the transfer counter.
func (m *LedgerMetrics) RecordTransfer() {
	if m == nil {
		return
	}
	m.transfers.Inc()
}

// RecordThrottle increments the throttle counter for the supplied reason.
// Reasons should be stable strings such as "rate_limit" or "paused" so
// dashboards and alerts remain consistent.
func (m *LedgerMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// RecordPauseTransition increments the pause transition counter. Kind should
// be "engaged", "lifted", or "guardian_granted".
func (m *LedgerMetrics) RecordPauseTransition(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.pauses.WithLabelValues(kind).Inc()
}

// ObserveRequest records the outcome and latency of an API request.
func (m *LedgerMetrics) ObserveRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	result := "success"
	if status >= 400 {
		result = fmt.Sprintf("error_%d", status)
	}
	m.requests.WithLabelValues(route, result).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
