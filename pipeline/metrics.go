package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for QueriesTotal.
const (
	OutcomeAnswered = "answered"
	OutcomeRephrase = "rephrase"
	OutcomeError    = "error"
)

// Metrics holds Prometheus metrics for the question pipeline.
type Metrics struct {
	queriesTotal    *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	queryDuration   prometheus.Histogram
	entitiesTotal   *prometheus.CounterVec
	inflightQueries prometheus.Gauge
}

// NewMetrics creates pipeline metrics and registers them with reg. A nil
// registerer returns nil, and every method is safe on a nil *Metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinegraph_queries_total",
				Help: "Questions processed, by route and outcome",
			},
			[]string{"route", "outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cinegraph_stage_duration_seconds",
				Help:    "Duration of each pipeline stage",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		queryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cinegraph_query_duration_seconds",
				Help:    "End-to-end question latency",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		entitiesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinegraph_entities_total",
				Help: "Extracted entity candidates, by resolution status",
			},
			[]string{"status"},
		),
		inflightQueries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cinegraph_queries_inflight",
				Help: "Questions currently being answered",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.queriesTotal, m.stageDuration, m.queryDuration, m.entitiesTotal, m.inflightQueries,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordQuery(route, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "none"
	}
	m.queriesTotal.WithLabelValues(route, outcome).Inc()
	m.queryDuration.Observe(d.Seconds())
}

func (m *Metrics) recordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) recordEntities(resolved, unresolved int) {
	if m == nil {
		return
	}
	m.entitiesTotal.WithLabelValues("resolved").Add(float64(resolved))
	m.entitiesTotal.WithLabelValues("unresolved").Add(float64(unresolved))
}

func (m *Metrics) inflight(delta float64) {
	if m == nil {
		return
	}
	m.inflightQueries.Add(delta)
}
