// Package metrics holds the Prometheus collectors for generation runs.
//
// A nil *Recorder is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "appgen"

// Recorder groups every collector the pipeline updates.
type Recorder struct {
	// CompletionCalls counts finished completion calls.
	// Labels: purpose (features, plan, artifact, reconcile, doctor), outcome (ok, transient, fatal, cancelled)
	CompletionCalls *prometheus.CounterVec

	// CompletionRetries counts backoff retries by purpose.
	CompletionRetries *prometheus.CounterVec

	// Artifacts counts produced artifacts.
	// Labels: kind (markup, style, behavior), status (valid, repaired, fallback)
	Artifacts *prometheus.CounterVec

	// ExtractionTiers counts which extraction tier answered at each call site.
	// Labels: site (features, plan), tier (direct, unwrapped, rewritten, partial, default)
	ExtractionTiers *prometheus.CounterVec

	// StageSeconds observes the duration of each pipeline stage.
	StageSeconds *prometheus.HistogramVec

	// Runs counts finished runs by terminal state.
	Runs *prometheus.CounterVec
}

// New registers the collectors on reg. Passing a fresh registry per test keeps
// registrations from colliding.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		CompletionCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "calls_total",
			Help:      "Completion calls by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		CompletionRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "retries_total",
			Help:      "Completion attempts retried after a transient failure.",
		}, []string{"purpose"}),
		Artifacts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Artifacts produced by kind and status.",
		}, []string{"kind", "status"}),
		ExtractionTiers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_tier_total",
			Help:      "Structured extraction results by call site and tier.",
		}, []string{"site", "tier"}),
		StageSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent per pipeline stage.",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by terminal state.",
		}, []string{"state"}),
	}
}

func (r *Recorder) CompletionCall(purpose, outcome string) {
	if r == nil {
		return
	}
	r.CompletionCalls.WithLabelValues(purpose, outcome).Inc()
}

func (r *Recorder) CompletionRetry(purpose string) {
	if r == nil {
		return
	}
	r.CompletionRetries.WithLabelValues(purpose).Inc()
}

func (r *Recorder) Artifact(kind, status string) {
	if r == nil {
		return
	}
	r.Artifacts.WithLabelValues(kind, status).Inc()
}

func (r *Recorder) ExtractionTier(site, tier string) {
	if r == nil {
		return
	}
	r.ExtractionTiers.WithLabelValues(site, tier).Inc()
}

func (r *Recorder) Stage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) Run(state string) {
	if r == nil {
		return
	}
	r.Runs.WithLabelValues(state).Inc()
}
