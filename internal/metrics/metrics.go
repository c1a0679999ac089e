// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusMetrics struct {
	registry             prometheus.Registerer
	runsTotal            *prometheus.CounterVec
	runDuration          *prometheus.HistogramVec
	unitsRunning         prometheus.Gauge
	unitsQueued          prometheus.Gauge
	pendingConfirmations prometheus.Gauge
}

func InitPrometheusMetrics(namespace string, reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMetrics{
		registry: reg,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of unit runs",
			},
			[]string{"result"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of unit runs, confirmation wait included",
				Buckets:   []float64{.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"result"},
		),
		unitsRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "units_running",
				Help:      "Number of units currently running",
			},
		),
		unitsQueued: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "units_queued",
				Help:      "Number of units queued behind an active run",
			},
		),
		pendingConfirmations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_confirmations",
				Help:      "Number of confirmation requests awaiting a response",
			},
		),
	}

	reg.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.unitsRunning,
		m.unitsQueued,
		m.pendingConfirmations,
	)

	return m
}

// RecordRun records one finished run under its result label
// ("success" or "failure").
func (m *PrometheusMetrics) RecordRun(success bool, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	m.runsTotal.WithLabelValues(result).Inc()
	m.runDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SetSchedulerCounts(running, queued int) {
	m.unitsRunning.Set(float64(running))
	m.unitsQueued.Set(float64(queued))
}

func (m *PrometheusMetrics) SetPendingConfirmations(count int) {
	m.pendingConfirmations.Set(float64(count))
}
