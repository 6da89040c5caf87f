// Package metrics records import activity as Prometheus series.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gridimport"

// Outcome labels for finished imports.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the import series on a private registry so several
// instances can live in one process. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	imports  *prometheus.CounterVec
	failures *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

// New creates the import series along with the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		imports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_total",
				Help:      "Finished imports by profile and outcome",
			},
			[]string{"profile", "outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_failures_total",
				Help:      "Failed imports by profile and error code",
			},
			[]string{"profile", "code"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Rows delivered to a sink by profile",
			},
			[]string{"profile"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_duration_seconds",
				Help:      "Wall time of finished imports",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
			},
			[]string{"profile"},
		),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "imports_active",
			Help:      "Imports currently running",
		}),
	}

	m.registry.MustRegister(
		m.imports, m.failures, m.rows, m.duration, m.active,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding every series.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ImportStarted marks one import as running.
func (m *Metrics) ImportStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

// ImportFinished records a completed import. code is the user-facing
// error code and is ignored unless outcome is OutcomeFailed.
func (m *Metrics) ImportFinished(profile, outcome, code string, rows int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.imports.WithLabelValues(profile, outcome).Inc()
	m.duration.WithLabelValues(profile).Observe(elapsed.Seconds())
	if rows > 0 {
		m.rows.WithLabelValues(profile).Add(float64(rows))
	}
	if outcome == OutcomeFailed {
		m.failures.WithLabelValues(profile, code).Inc()
	}
}
