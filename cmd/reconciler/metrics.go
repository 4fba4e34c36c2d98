package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric definitions for the reconciler

var (
	companyRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conta",
			Subsystem: "reconciliation",
			Name:      "company_runs_total",
			Help:      "Total number of per-company reconciliation runs",
		},
		[]string{"result"},
	)

	companyRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "conta",
			Subsystem: "reconciliation",
			Name:      "company_run_duration_seconds",
			Help:      "Duration of one company's reconciliation run",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.5min
		},
	)

	taxDetailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conta",
			Subsystem: "reconciliation",
			Name:      "tax_details_total",
			Help:      "Reconciliation details produced, by classification",
		},
		[]string{"status"},
	)

	matchSuggestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conta",
			Subsystem: "reconciliation",
			Name:      "match_suggestions_total",
			Help:      "Bank match suggestions produced, by confidence",
		},
		[]string{"confidence"},
	)
)

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordCompanyRun records the outcome and duration of one company's run
func RecordCompanyRun(result string, elapsed time.Duration) {
	companyRunsTotal.WithLabelValues(result).Inc()
	companyRunDuration.Observe(elapsed.Seconds())
}

// RecordTaxDetail counts one reconciliation detail by classification
func RecordTaxDetail(status string) {
	taxDetailsTotal.WithLabelValues(status).Inc()
}

// RecordMatchSuggestion counts one bank match suggestion by confidence
func RecordMatchSuggestion(confidence string) {
	matchSuggestionsTotal.WithLabelValues(confidence).Inc()
}
