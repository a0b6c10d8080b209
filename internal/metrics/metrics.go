// Package metrics holds the Prometheus collectors for fill runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	FillRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantfill_runs_total",
			Help: "Total number of fill runs by surface and outcome",
		},
		[]string{"surface", "outcome"},
	)

	FieldsFilled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantfill_fields_filled_total",
			Help: "Total number of questions written into a form",
		},
		[]string{"surface"},
	)

	FieldsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantfill_fields_skipped_total",
			Help: "Total number of questions left unfilled",
		},
		[]string{"surface"},
	)

	FillDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grantfill_run_duration_seconds",
			Help:    "Duration of fill runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"surface"},
	)

	PagesVisited = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grantfill_pages_visited",
			Help:    "Pages visited per web fill run",
			Buckets: []float64{1, 2, 3, 5, 10, 20},
		},
	)

	ModelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantfill_model_requests_total",
			Help: "Total number of language model operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// ObserveFill records a finished fill run. report may be nil when the run
// failed before producing one.
func ObserveFill(surface string, report *grant.FillReport, err error, elapsed time.Duration) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	FillRuns.WithLabelValues(surface, outcome).Inc()
	FillDuration.WithLabelValues(surface).Observe(elapsed.Seconds())
	if report == nil {
		return
	}
	FieldsFilled.WithLabelValues(surface).Add(float64(report.FieldsFilled))
	FieldsSkipped.WithLabelValues(surface).Add(float64(report.FieldsSkipped))
	if report.PagesVisited > 0 {
		PagesVisited.Observe(float64(report.PagesVisited))
	}
}

// ObserveModel records one language model operation
func ObserveModel(operation string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	ModelRequests.WithLabelValues(operation, outcome).Inc()
}
