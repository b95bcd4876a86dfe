package compiler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records compilation outcomes.
type Metrics struct {
	compilations *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	cacheHits    prometheus.Counter
}

// NewMetrics creates the compiler collectors and registers them with reg
// when reg is non-nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		compilations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compilations_total",
				Help:      "Total number of resume compilations",
			},
			[]string{"format", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compilation_duration_seconds",
				Help:      "Resume compilation duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"format"},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifact_cache_hits_total",
				Help:      "Total number of compilations served from the artifact cache",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.compilations, m.duration, m.cacheHits)
	}
	return m
}

func (m *Metrics) observe(format string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.compilations.WithLabelValues(format, outcome).Inc()
	m.duration.WithLabelValues(format).Observe(time.Since(start).Seconds())
}

func (m *Metrics) cacheHit(format string) {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
	m.compilations.WithLabelValues(format, "cached").Inc()
}
