// Package metrics exports import run results as Prometheus metrics and
// pushes them to a Pushgateway. A short-lived CLI run has no scrape
// endpoint, so the registry is pushed once when the run ends.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/AndriyPolukhin/app-aiv/internal/ingest"
)

const defaultJob = "csvload"

// Recorder holds the collectors for one process.
type Recorder struct {
	reg *prometheus.Registry

	records  *prometheus.CounterVec   // csvload_records_total
	batches  *prometheus.CounterVec   // csvload_batches_total
	runs     *prometheus.CounterVec   // csvload_runs_total
	duration *prometheus.HistogramVec // csvload_run_duration_seconds
}

// NewRecorder creates collectors on a private registry.
func NewRecorder() (*Recorder, error) {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csvload_records_total",
			Help: "Records handled per destination and outcome (successful, failed, malformed).",
		}, []string{"destination", "outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csvload_batches_total",
			Help: "Insert batches finished per destination.",
		}, []string{"destination"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csvload_runs_total",
			Help: "Import runs per destination, strategy and status.",
		}, []string{"destination", "strategy", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "csvload_run_duration_seconds",
			Help:    "Wall time of import runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
		}, []string{"destination", "strategy"}),
	}

	for _, c := range []prometheus.Collector{r.records, r.batches, r.runs, r.duration} {
		if err := r.reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// ObserveRun records a finished run. m may be nil when the run failed.
func (r *Recorder) ObserveRun(destination string, m *ingest.Metrics, runErr error) {
	if m == nil {
		r.runs.WithLabelValues(destination, "", "error").Inc()
		return
	}
	strategy := string(m.Strategy)
	status := "ok"
	switch {
	case runErr != nil:
		status = "error"
	case m.FailedRecords > 0 || m.MalformedRows > 0:
		status = "partial"
	}
	r.runs.WithLabelValues(destination, strategy, status).Inc()
	r.records.WithLabelValues(destination, "successful").Add(float64(m.SuccessfulRecords))
	r.records.WithLabelValues(destination, "failed").Add(float64(m.FailedRecords))
	r.records.WithLabelValues(destination, "malformed").Add(float64(m.MalformedRows))
	r.batches.WithLabelValues(destination).Add(float64(m.CurrentBatch))
	r.duration.WithLabelValues(destination, strategy).Observe(m.Duration().Seconds())
}

// Push sends the registry to the Pushgateway at gatewayURL under job (or
// "csvload"), grouped by run id.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job, runID string) error {
	if gatewayURL == "" {
		return fmt.Errorf("pushgateway URL is required")
	}
	if job == "" {
		job = defaultJob
	}
	p := push.New(gatewayURL, job).Gatherer(r.reg)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
