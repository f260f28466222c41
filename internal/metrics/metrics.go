// Package metrics holds the Prometheus collectors of the report pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors updated by the report manager.
type Metrics struct {
	ReportsTriggered prometheus.Counter
	ReportsFinished  *prometheus.CounterVec
	ReportDuration   prometheus.Histogram
	StoresProcessed  prometheus.Counter
	JobsInFlight     prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReportsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "reports_triggered_total",
			Help:      "Total number of report jobs created.",
		}),
		ReportsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "reports_finished_total",
			Help:      "Total number of report jobs that reached a terminal state.",
		}, []string{"status"}),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uptime",
			Name:      "report_duration_seconds",
			Help:      "Histogram of report generation time in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}),
		StoresProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "stores_processed_total",
			Help:      "Total number of store rows computed.",
		}),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uptime",
			Name:      "jobs_in_flight",
			Help:      "Number of report jobs currently executing.",
		}),
	}
	reg.MustRegister(m.ReportsTriggered, m.ReportsFinished, m.ReportDuration, m.StoresProcessed, m.JobsInFlight)
	return m
}
