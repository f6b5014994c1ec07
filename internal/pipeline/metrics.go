package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the pipeline on a private registry. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pulled      *prometheus.CounterVec
	selected    *prometheus.CounterVec
	unavailable *prometheus.CounterVec
	identities  *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewMetrics registers the pipeline collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		pulled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passfuse_candidates_pulled_total",
			Help: "Candidates read from each generator during fusion",
		}, []string{"generator"}),
		selected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passfuse_candidates_selected_total",
			Help: "Selected candidates credited to each generator",
		}, []string{"generator"}),
		unavailable: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passfuse_generator_unavailable_total",
			Help: "Identities for which a generator failed, timed out or panicked",
		}, []string{"generator"}),
		identities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passfuse_identities_total",
			Help: "Processed identities by status",
		}, []string{"status"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "passfuse_identity_duration_seconds",
			Help:    "Wall time spent on one identity from generation to selection",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

// Gatherer exposes the registry for scraping or tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// WriteTextfile writes the current values in node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observePulled(generator string, n int) {
	if m != nil && n > 0 {
		m.pulled.WithLabelValues(generator).Add(float64(n))
	}
}

func (m *Metrics) observeSelected(generator string, n int) {
	if m != nil && n > 0 {
		m.selected.WithLabelValues(generator).Add(float64(n))
	}
}

func (m *Metrics) incUnavailable(generator string) {
	if m != nil {
		m.unavailable.WithLabelValues(generator).Inc()
	}
}

func (m *Metrics) observeIdentity(status Status, d time.Duration) {
	if m != nil {
		m.identities.WithLabelValues(string(status)).Inc()
		m.duration.Observe(d.Seconds())
	}
}
