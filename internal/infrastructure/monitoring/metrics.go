package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type CirculationMetrics struct {
	EventsTotal      *prometheus.CounterVec
	OverdueSweepSize prometheus.Histogram
}

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

var (
	Circulation = CirculationMetrics{
		EventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circulation_engine_events_total",
				Help: "Total number of circulation events processed, by action and outcome.",
			},
			[]string{"action", "status"},
		),
		OverdueSweepSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "circulation_engine_overdue_sweep_transitions",
				Help:    "Number of loans transitioned to overdue per sweep run.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),
	}

	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "circulation_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}
)

func RecordCirculation(action, status string) {
	Circulation.EventsTotal.WithLabelValues(action, status).Inc()
}

func RecordSweep(transitioned int) {
	Circulation.OverdueSweepSize.Observe(float64(transitioned))
}

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}
