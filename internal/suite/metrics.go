package suite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xkilldash9x/searchcheck/internal/reporting"
)

// Metrics collects per-run case metrics on a private registry so they can be
// dumped to a node-exporter textfile at the end of the run.
type Metrics struct {
	registry *prometheus.Registry

	cases    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastRun  prometheus.Gauge
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		cases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "searchcheck",
			Name:      "cases_total",
			Help:      "Cases run, by outcome and failure kind.",
		}, []string{"status", "kind"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "searchcheck",
			Name:      "case_duration_seconds",
			Help:      "Wall time of a case including the page reload.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"status"}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "searchcheck",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
}

// Registry exposes the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe records one finished case.
func (m *Metrics) Observe(r *reporting.CaseResult) {
	m.cases.WithLabelValues(string(r.Status), r.Kind).Inc()
	if r.Status != reporting.StatusSkipped {
		m.duration.WithLabelValues(string(r.Status)).Observe(r.Duration.Seconds())
	}
}

// WriteTextfile stamps the run end and writes every metric to path in the
// text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	m.lastRun.SetToCurrentTime()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
