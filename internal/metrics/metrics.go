// Package metrics exposes Prometheus metrics for the alert engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the alert engine.
// Each Metrics instance carries its own registry so tests can create
// fresh instances without duplicate-registration panics.
type Metrics struct {
	TicksTotal      prometheus.Counter
	TicksDropped    prometheus.Counter
	AssetsEvaluated prometheus.Counter
	AlertsEvaluated prometheus.Counter
	AlertsFired     prometheus.Counter
	FeedErrors      prometheus.Counter
	HistorySkips    prometheus.Counter
	CycleDur        prometheus.Histogram
	FeedLatency     prometheus.Histogram
	ActiveAlerts    prometheus.Gauge
	ActiveAssets    prometheus.Gauge

	registry *prometheus.Registry
}

// New registers and returns all engine metrics.
func New() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_ticks_total",
			Help: "Total evaluation ticks started",
		}),
		TicksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_ticks_dropped_total",
			Help: "Ticks dropped because the previous cycle was still running",
		}),
		AssetsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_assets_evaluated_total",
			Help: "Per-asset evaluation steps executed",
		}),
		AlertsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_alerts_evaluated_total",
			Help: "Individual alert condition evaluations",
		}),
		AlertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_alerts_fired_total",
			Help: "Alerts that fired and were handed to the notification sink",
		}),
		FeedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_feed_errors_total",
			Help: "Per-asset price feed failures (including timeouts)",
		}),
		HistorySkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_history_skips_total",
			Help: "Indicator evaluations skipped for insufficient history",
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alertengine_cycle_duration_seconds",
			Help:    "Full evaluation cycle latency",
			Buckets: prometheus.DefBuckets,
		}),
		FeedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alertengine_feed_latency_seconds",
			Help:    "Upstream price fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertengine_active_alerts",
			Help: "Currently Active alerts in the registry",
		}),
		ActiveAssets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertengine_active_assets",
			Help: "Distinct assets with at least one Active alert",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.TicksTotal,
		m.TicksDropped,
		m.AssetsEvaluated,
		m.AlertsEvaluated,
		m.AlertsFired,
		m.FeedErrors,
		m.HistorySkips,
		m.CycleDur,
		m.FeedLatency,
		m.ActiveAlerts,
		m.ActiveAssets,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
