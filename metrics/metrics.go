// Package metrics optionally instruments the engine with Prometheus
// counters and histograms. Nothing in the engine's staleness algorithm or
// correctness depends on this package; a nil *Recorder is always a safe
// no-op, grounded on the teacher's own src/metrics package which the
// engine always carries even though it's never required for a build to
// succeed.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome is the result of attempting to build a single target.
type Outcome string

const (
	OutcomeRan     Outcome = "ran"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Recorder records per-target build counts and command durations, broken
// down by target kind and outcome.
type Recorder struct {
	registry  *prometheus.Registry
	counter   *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewRecorder creates a Recorder backed by a fresh, private Prometheus
// registry (the engine never needs to share a registry with anything else).
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "buildcore_targets_total",
		Help: "Count of target build attempts by kind and outcome.",
	}, []string{"kind", "outcome"})
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "buildcore_command_duration_seconds",
		Help:    "Wall-clock duration of executed target commands.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	registry.MustRegister(counter, histogram)
	return &Recorder{registry: registry, counter: counter, histogram: histogram}
}

// Observe records one target build attempt. duration is recorded only when
// outcome is OutcomeRan and is ignored otherwise.
func (r *Recorder) Observe(kind string, outcome Outcome, duration time.Duration) {
	if r == nil {
		return
	}
	r.counter.WithLabelValues(kind, string(outcome)).Inc()
	if outcome == OutcomeRan {
		r.histogram.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// Registry exposes the underlying Prometheus registry, eg. for a caller
// that wants to serve /metrics or push to a gateway. Safe to call on a nil
// Recorder, returning nil.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
