package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jorge-barreto/appgen/internal/artifact"
	"github.com/jorge-barreto/appgen/internal/completion"
	"github.com/jorge-barreto/appgen/internal/consistency"
	"github.com/jorge-barreto/appgen/internal/generate"
	"github.com/jorge-barreto/appgen/internal/metrics"
	"github.com/jorge-barreto/appgen/internal/planning"
	"github.com/jorge-barreto/appgen/internal/progress"
	"github.com/jorge-barreto/appgen/internal/schedule"
	"github.com/jorge-barreto/appgen/internal/state"
)

// DefaultWorkers bounds concurrent generation calls within one level.
const DefaultWorkers = 4

// ErrEmptyRequest is returned for a request with no text.
var ErrEmptyRequest = errors.New("empty request")

// Orchestrator drives the pipeline state machine.
type Orchestrator struct {
	planner    *planning.Planner
	generator  *generate.Generator
	reconciler *consistency.Reconciler
	workers    int
	reconcile  bool
	stopAfter  State
	log        *zap.Logger
	metrics    *metrics.Recorder
	now        func() time.Time

	strict     bool
	regenerate int
}

type Option func(*Orchestrator)

// WithWorkers sets the per-level worker cap. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithReconcile enables or disables the consistency pass.
func WithReconcile(on bool) Option {
	return func(o *Orchestrator) { o.reconcile = on }
}

// WithStrictPlanning makes unreadable planning output fail the run instead
// of degrading to defaults.
func WithStrictPlanning(on bool) Option {
	return func(o *Orchestrator) { o.strict = on }
}

// WithRegenerate sets how many feedback-carrying retries a rejected artifact gets.
func WithRegenerate(n int) Option {
	return func(o *Orchestrator) { o.regenerate = n }
}

// WithDryRun stops the run once it has been scheduled.
func WithDryRun(on bool) Option {
	return func(o *Orchestrator) {
		if on {
			o.stopAfter = StateScheduled
		} else {
			o.stopAfter = ""
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New builds an orchestrator whose stages all call client.
func New(client completion.Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		workers:    DefaultWorkers,
		reconcile:  true,
		regenerate: 1,
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.planner = planning.New(client,
		planning.WithStrict(o.strict), planning.WithLogger(o.log), planning.WithMetrics(o.metrics))
	o.generator = generate.New(client,
		generate.WithRegenerate(o.regenerate), generate.WithLogger(o.log), generate.WithMetrics(o.metrics))
	o.reconciler = consistency.New(client,
		consistency.WithLogger(o.log), consistency.WithMetrics(o.metrics))
	return o
}

// runner carries one invocation's mutable state.
type runner struct {
	*Orchestrator
	run  *Run
	sink progress.Sink
	log  *zap.Logger
}

// GenerateComplete runs req through the whole pipeline. Events go to sink,
// possibly from several goroutines at once while a level is generating.
//
// The returned run is always non-nil. On failure or cancellation the error is
// a *Error and the run records where it stopped; artifacts produced before a
// cancellation are kept on the run but are not a complete set.
func (o *Orchestrator) GenerateComplete(ctx context.Context, req Request, sink progress.Sink) (*Run, error) {
	if sink == nil {
		sink = progress.Discard
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	run := &Run{
		ID:        id,
		Request:   req.Text,
		Artifacts: artifact.NewSet(),
		State:     StatePending,
		Started:   o.now(),
		Timing:    state.NewTiming(),
	}
	r := &runner{Orchestrator: o, run: run, sink: sink, log: o.log.With(zap.String("run", run.ID))}
	err := r.execute(ctx, req)
	run.Finished = o.now()
	o.metrics.Run(string(run.State))
	return run, err
}

func (r *runner) execute(ctx context.Context, req Request) error {
	run := r.run

	if err := r.enter(ctx, StateExtracting, "reading the request"); err != nil {
		return err
	}
	if strings.TrimSpace(req.Text) == "" {
		return r.fail(ctx, StateExtracting, ErrEmptyRequest)
	}
	features, err := r.planner.ExtractFeatures(ctx, req.Text, req.Previous.Previous())
	r.stageDone(StateExtracting)
	if err != nil {
		return r.fail(ctx, StateExtracting, err)
	}
	run.Features = features

	if err := r.enter(ctx, StatePlanning, fmt.Sprintf("%d features", len(features.Features))); err != nil {
		return err
	}
	manifest, err := r.planner.PlanManifest(ctx, features)
	if err != nil {
		r.stageDone(StatePlanning)
		return r.fail(ctx, StatePlanning, err)
	}
	levels, err := schedule.Levels(manifest)
	r.stageDone(StatePlanning)
	if err != nil {
		return r.fail(ctx, StatePlanning, err)
	}
	run.Manifest = manifest
	run.Levels = levels

	if err := r.enter(ctx, StateScheduled, fmt.Sprintf("%d artifacts in %d levels", len(manifest.Specs), len(levels))); err != nil {
		return err
	}
	r.stageDone(StateScheduled)
	if r.stopAfter == StateScheduled {
		r.transition(StateDone, "dry run")
		return nil
	}

	for i, level := range levels {
		run.Level = i
		if err := r.enter(ctx, StateGenerating, levelDetail(i, len(levels), level)); err != nil {
			return err
		}
		r.generateLevel(ctx, i, level)
		r.stageDone(StateGenerating)
	}

	if r.reconcile {
		if err := r.enter(ctx, StateReconciling, "checking cross-file references"); err != nil {
			return err
		}
		revised, touched := r.reconciler.Reconcile(ctx, run.Features, run.Artifacts.Sorted())
		r.stageDone(StateReconciling)
		if len(touched) > 0 {
			r.replaceArtifacts(revised, touched)
		}
		if err := ctx.Err(); err != nil {
			return r.cancel(StateReconciling, context.Cause(ctx))
		}
	}

	r.transition(StateDone, summary(run.Artifacts))
	return nil
}

// generateLevel runs every spec of one level concurrently and waits for all
// of them. Calls run detached from ctx so cancellation never leaves an
// artifact half-produced.
func (r *runner) generateLevel(ctx context.Context, index int, level []artifact.Spec) {
	gctx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, spec := range level {
		g.Go(func() error {
			deps := r.run.Artifacts.Subset(spec.DependsOn)
			a := r.generator.Generate(gctx, spec, r.run.Features, r.run.Manifest, deps)
			if err := r.run.Artifacts.Put(a); err != nil {
				r.log.Error("storing artifact", zap.String("artifact", a.Name), zap.Error(err))
				return nil
			}
			detail := string(a.Status)
			if len(a.Problems) > 0 {
				detail += ": " + a.Problems[0]
			}
			r.emit(progress.Event{
				Step:     progress.StepArtifact,
				Detail:   detail,
				Level:    index,
				Artifact: a.Name,
				Status:   a.Status,
			})
			return nil
		})
	}
	_ = g.Wait()
}

// replaceArtifacts swaps in the reconciled set. The key set is unchanged, so
// a failed insert means the pass returned duplicates and is ignored.
func (r *runner) replaceArtifacts(revised []artifact.Artifact, touched []string) {
	set := artifact.NewSet()
	for _, a := range revised {
		if err := set.Put(a); err != nil {
			r.log.Error("discarding reconciled set", zap.Error(err))
			return
		}
	}
	r.run.Artifacts = set
	r.run.Reconciled = touched
	for _, name := range touched {
		a, _ := set.Get(name)
		r.emit(progress.Event{Step: progress.StepArtifact, Detail: "reconciled", Artifact: name, Status: a.Status})
	}
}

// enter checks for cancellation, then moves to s and announces it.
func (r *runner) enter(ctx context.Context, s State, detail string) error {
	if err := ctx.Err(); err != nil {
		return r.cancel(r.run.State, context.Cause(ctx))
	}
	r.transition(s, detail)
	r.run.Timing.Start(string(s))
	return nil
}

func (r *runner) stageDone(s State) {
	r.metrics.Stage(string(s), r.run.Timing.End(string(s)))
}

func (r *runner) transition(s State, detail string) {
	r.run.State = s
	r.log.Info("pipeline state", zap.String("state", string(s)), zap.String("detail", detail))
	e := progress.Event{Step: string(s), Detail: detail}
	if s == StateGenerating {
		e.Level = r.run.Level
	}
	r.emit(e)
}

func (r *runner) emit(e progress.Event) {
	e.RunID = r.run.ID
	if e.Time.IsZero() {
		e.Time = r.now()
	}
	r.run.record(e)
	r.sink.Publish(e)
}

// fail ends the run in the failed state, unless the caller cancelled, in
// which case the error is only a symptom of that.
func (r *runner) fail(ctx context.Context, at State, err error) error {
	if ctx.Err() != nil {
		return r.cancel(at, context.Cause(ctx))
	}
	r.run.Err = err
	r.run.FailedAt = at
	r.log.Error("pipeline failed", zap.String("state", string(at)), zap.Error(err))
	r.transition(StateFailed, fmt.Sprintf("%s: %v", at, err))
	return &Error{State: at, Err: err}
}

func (r *runner) cancel(at State, cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	r.run.Err = cause
	r.run.FailedAt = at
	r.log.Warn("pipeline cancelled", zap.String("state", string(at)), zap.Error(cause))
	r.transition(StateCancelled, fmt.Sprintf("cancelled during %s", at))
	return &Error{State: at, Err: cause}
}

func levelDetail(i, total int, level []artifact.Spec) string {
	names := make([]string, len(level))
	for j, s := range level {
		names[j] = s.Name
	}
	return fmt.Sprintf("level %d/%d: %s", i+1, total, strings.Join(names, ", "))
}

func summary(set *artifact.Set) string {
	counts := make(map[artifact.Status]int)
	for _, a := range set.Sorted() {
		counts[a.Status]++
	}
	return fmt.Sprintf("%d artifacts (%d valid, %d repaired, %d fallback)",
		set.Len(), counts[artifact.StatusValid], counts[artifact.StatusRepaired], counts[artifact.StatusFallback])
}
