// Package metrics exposes the service's Prometheus collectors. All recording
// methods are safe to call on a nil *Metrics, which disables collection.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ohs"

// Metrics groups the collectors registered on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	resolutions *prometheus.CounterVec
	syncs       *prometheus.CounterVec
	indexSize   *prometheus.GaugeVec
	drafts      *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_resolutions_total",
			Help:      "Protocol resolutions by outcome.",
		}, []string{"outcome"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_attempts_total",
			Help:      "Hierarchy sync attempts by result.",
		}, []string{"result"}),
		indexSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entities",
			Help:      "Entities in the active protocol index.",
		}, []string{"kind"}),
		drafts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checklist_draft_operations_total",
			Help:      "Checklist draft operations by action.",
		}, []string{"action"}),
	}
	reg.MustRegister(
		m.resolutions, m.syncs, m.indexSize, m.drafts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveResolution counts one resolution. outcome is "protocol",
// "no_protocol" or "unknown_position".
func (m *Metrics) ObserveResolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

// ObserveSync counts one sync attempt.
func (m *Metrics) ObserveSync(result string) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(result).Inc()
}

// SetIndexSize records the size of one index map.
func (m *Metrics) SetIndexSize(kind string, n int) {
	if m == nil {
		return
	}
	m.indexSize.WithLabelValues(kind).Set(float64(n))
}

// ObserveDraft counts one draft store operation.
func (m *Metrics) ObserveDraft(action string) {
	if m == nil {
		return
	}
	m.drafts.WithLabelValues(action).Inc()
}
