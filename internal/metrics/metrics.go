// Package metrics exposes prometheus instrumentation for loads and
// projections.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Load results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	loads        *prometheus.CounterVec
	linksDropped prometheus.Counter
	graphNodes   prometheus.Histogram
	subscribers  prometheus.Gauge
}

// New registers the collectors on a private registry, alongside the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphlens_loads_total",
				Help: "Total number of workflow loads by input kind and result",
			},
			[]string{"kind", "result"},
		),
		linksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphlens_links_dropped_total",
			Help: "Links skipped during projection because they could not be resolved",
		}),
		graphNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "graphlens_graph_nodes",
			Help:    "Number of nodes per projected graph",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphlens_subscribers",
			Help: "Active load event subscribers",
		}),
	}
	m.registry.MustRegister(
		m.loads, m.linksDropped, m.graphNodes, m.subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveLoad records one load attempt.
func (m *Metrics) ObserveLoad(kind, result string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.loads.WithLabelValues(kind, result).Inc()
}

// ObserveGraph records the size of a projected graph and its dropped links.
func (m *Metrics) ObserveGraph(nodes, droppedLinks int) {
	if m == nil {
		return
	}
	m.graphNodes.Observe(float64(nodes))
	m.linksDropped.Add(float64(droppedLinks))
}

// SubscriberAdded and SubscriberRemoved track live event streams.
func (m *Metrics) SubscriberAdded() {
	if m != nil {
		m.subscribers.Inc()
	}
}

func (m *Metrics) SubscriberRemoved() {
	if m != nil {
		m.subscribers.Dec()
	}
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
