// Package metrics holds the prometheus collectors of the daemon. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "asgardex"

// Detection outcomes.
const (
	DetectionFound     = "found"
	DetectionExhausted = "exhausted"
	DetectionCancelled = "cancelled"
)

// Balance fetch outcomes.
const (
	FetchPrimary  = "primary"
	FetchFallback = "fallback"
	FetchFailed   = "failed"
)

// Metrics groups the collectors of every component.
type Metrics struct {
	registry *prometheus.Registry

	DetectionAttempts *prometheus.CounterVec
	DetectionRuns     *prometheus.CounterVec
	BridgeCalls       *prometheus.HistogramVec
	BalanceFetches    *prometheus.CounterVec
	BalanceDuration   *prometheus.HistogramVec
	SessionMode       *prometheus.GaugeVec
	ModeTransitions   *prometheus.CounterVec
	WSClients         prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		DetectionAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "detection_attempts_total",
			Help:      "Bridge calls made while detecting a ledger chain.",
		}, []string{"chain", "ok"}),
		DetectionRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "detection_runs_total",
			Help:      "Finished chain detection runs by outcome.",
		}, []string{"chain", "outcome"}),
		BridgeCalls: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "bridge_call_seconds",
			Help:      "Latency of hardware bridge calls.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "ok"}),
		BalanceFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "balances",
			Name:      "fetches_total",
			Help:      "Balance fetches by chain and the asset list that served them.",
		}, []string{"chain", "outcome"}),
		BalanceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "balances",
			Name:      "fetch_seconds",
			Help:      "Latency of a balance fetch including the fallback retry.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain"}),
		SessionMode: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "mode",
			Help:      "1 for the active wallet session mode.",
		}, []string{"mode"}),
		ModeTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Requested wallet session mode transitions.",
		}, []string{"to", "ok"}),
		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "ws_clients",
			Help:      "Connected WebSocket event clients.",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func okLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}

// DetectionAttempt counts one bridge call of a detection run.
func (m *Metrics) DetectionAttempt(chain string, ok bool) {
	if m == nil {
		return
	}
	m.DetectionAttempts.WithLabelValues(chain, okLabel(ok)).Inc()
}

// DetectionRun counts a finished detection run.
func (m *Metrics) DetectionRun(chain, outcome string) {
	if m == nil {
		return
	}
	m.DetectionRuns.WithLabelValues(chain, outcome).Inc()
}

// BridgeCall observes the latency of one bridge call.
func (m *Metrics) BridgeCall(method string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.BridgeCalls.WithLabelValues(method, okLabel(ok)).Observe(d.Seconds())
}

// BalanceFetch counts a finished balance fetch and observes its latency.
func (m *Metrics) BalanceFetch(chain, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.BalanceFetches.WithLabelValues(chain, outcome).Inc()
	m.BalanceDuration.WithLabelValues(chain).Observe(d.Seconds())
}

// SetSessionMode marks mode as the active one among modes.
func (m *Metrics) SetSessionMode(mode string, modes ...string) {
	if m == nil {
		return
	}
	for _, other := range modes {
		m.SessionMode.WithLabelValues(other).Set(0)
	}
	m.SessionMode.WithLabelValues(mode).Set(1)
}

// ModeTransition counts a requested mode transition.
func (m *Metrics) ModeTransition(to string, ok bool) {
	if m == nil {
		return
	}
	m.ModeTransitions.WithLabelValues(to, okLabel(ok)).Inc()
}

// WSClientConnected adjusts the WebSocket client gauge.
func (m *Metrics) WSClientConnected(delta int) {
	if m == nil {
		return
	}
	m.WSClients.Add(float64(delta))
}
