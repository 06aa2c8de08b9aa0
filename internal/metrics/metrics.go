// Package metrics holds the Prometheus collectors for the wish lifecycle.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wishaday"

// Metrics groups the lifecycle collectors under one registry.
type Metrics struct {
	Registry *prometheus.Registry

	created       prometheus.Counter
	quotaRejected prometheus.Counter
	views         *prometheus.CounterVec
	softDeleted   *prometheus.CounterVec
	reclaimed     prometheus.Counter
	reclaimErrors *prometheus.CounterVec
	sweepDuration prometheus.Histogram
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wishes",
			Name:      "created_total",
			Help:      "Total number of wishes created.",
		}),
		quotaRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "rejections_total",
			Help:      "Creation requests rejected by the per-origin quota.",
		}),
		views: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wishes",
			Name:      "views_total",
			Help:      "View requests by outcome.",
		}, []string{"result"}),
		softDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wishes",
			Name:      "soft_deleted_total",
			Help:      "Transitions to the soft-deleted state by reason.",
		}, []string{"reason"}),
		reclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reclaim",
			Name:      "wishes_removed_total",
			Help:      "Wishes permanently removed by the reclamation sweep.",
		}),
		reclaimErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reclaim",
			Name:      "errors_total",
			Help:      "Per-wish errors during reclamation by stage.",
		}, []string{"stage"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reclaim",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of reclamation sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
	}

	m.Registry.MustRegister(
		m.created,
		m.quotaRejected,
		m.views,
		m.softDeleted,
		m.reclaimed,
		m.reclaimErrors,
		m.sweepDuration,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) WishCreated() {
	if m == nil {
		return
	}
	m.created.Inc()
}

func (m *Metrics) QuotaRejected() {
	if m == nil {
		return
	}
	m.quotaRejected.Inc()
}

// ViewResult records a view outcome: "shown", "gone", "not_found" or "error".
func (m *Metrics) ViewResult(result string) {
	if m == nil {
		return
	}
	m.views.WithLabelValues(result).Inc()
}

// SoftDeleted records a transition out of Active: "time", "views" or "explicit".
func (m *Metrics) SoftDeleted(reason string) {
	if m == nil {
		return
	}
	m.softDeleted.WithLabelValues(reason).Inc()
}

func (m *Metrics) Reclaimed(n int) {
	if m == nil {
		return
	}
	m.reclaimed.Add(float64(n))
}

// ReclaimError records a per-wish failure: "media" or "remove".
func (m *Metrics) ReclaimError(stage string) {
	if m == nil {
		return
	}
	m.reclaimErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveSweep(seconds float64) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(seconds)
}
