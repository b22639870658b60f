// Package metrics exposes the board daemon's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	ops         *prometheus.CounterVec
	changes     *prometheus.CounterVec
	feedDropped prometheus.Counter
	subscribers prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atitlan",
			Subsystem: "board",
			Name:      "ops_total",
			Help:      "Board operations by table, operation and result.",
		}, []string{"table", "op", "result"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atitlan",
			Subsystem: "board",
			Name:      "changes_total",
			Help:      "Row-level change events published on the feed.",
		}, []string{"table", "op"}),
		feedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "atitlan",
			Subsystem: "feed",
			Name:      "dropped_total",
			Help:      "Live subscriptions cut off because the client fell behind.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "atitlan",
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Open live subscriptions.",
		}),
	}
	m.registry.MustRegister(
		m.ops, m.changes, m.feedDropped, m.subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOp counts one board operation. result is "ok", "conflict",
// "invalid", "not_found" or "error".
func (m *Metrics) ObserveOp(table, op, result string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(table, op, result).Inc()
}

// ObserveChange counts one published change event.
func (m *Metrics) ObserveChange(table, op string) {
	if m == nil {
		return
	}
	m.changes.WithLabelValues(table, op).Inc()
}

// FeedDropped counts one overflowed subscription.
func (m *Metrics) FeedDropped() {
	if m == nil {
		return
	}
	m.feedDropped.Inc()
}

// SetSubscribers records the number of open subscriptions.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
