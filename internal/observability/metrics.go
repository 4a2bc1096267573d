// Package observability exposes Prometheus metrics for the annotation job.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/stravaweather/internal/domain"
)

var (
	activityOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravaweather",
		Subsystem: "enrich",
		Name:      "activities_total",
		Help:      "Number of activities inspected, labeled by outcome.",
	}, []string{"outcome"})

	runCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravaweather",
		Subsystem: "enrich",
		Name:      "runs_total",
		Help:      "Number of completed runs, labeled by terminal state.",
	}, []string{"state"})

	lastSuccessGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stravaweather",
		Subsystem: "enrich",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent run that reached done.",
	})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stravaweather",
		Subsystem: "enrich",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a complete run.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
	})

	eventPublishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stravaweather",
		Subsystem: "events",
		Name:      "publish_errors_total",
		Help:      "Number of weather events that could not be published.",
	})
)

// Registry holds the job's collectors. It is separate from the default registry so
// the pusher only sends job metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(activityOutcomeCounter, runCounter, lastSuccessGauge, runDuration, eventPublishErrors)
}

// RecordOutcome counts one processed activity.
func RecordOutcome(outcome domain.Outcome) {
	activityOutcomeCounter.WithLabelValues(string(outcome)).Inc()
}

// RecordRun counts a finished run and, for successful runs, moves the success watermark.
func RecordRun(state domain.RunState, started, finished time.Time) {
	runCounter.WithLabelValues(string(state)).Inc()
	if !started.IsZero() && finished.After(started) {
		runDuration.Observe(finished.Sub(started).Seconds())
	}
	if state == domain.RunStateDone && !finished.IsZero() {
		lastSuccessGauge.Set(float64(finished.Unix()))
	}
}

// RecordPublishError counts a failed event publish.
func RecordPublishError() {
	eventPublishErrors.Inc()
}
