// Package pipeline drives a request through extraction, planning,
// scheduling, per-level generation and reconciliation.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/jorge-barreto/appgen/internal/artifact"
	"github.com/jorge-barreto/appgen/internal/planning"
	"github.com/jorge-barreto/appgen/internal/progress"
	"github.com/jorge-barreto/appgen/internal/state"
)

// State is a pipeline state machine state.
type State string

const (
	StatePending     State = "pending"
	StateExtracting  State = "extracting"
	StatePlanning    State = "planning"
	StateScheduled   State = "scheduled"
	StateGenerating  State = "generating"
	StateReconciling State = "reconciling"
	StateDone        State = "done"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// Error is the only error GenerateComplete returns. State is where the run
// stopped.
type Error struct {
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Request is one invocation of the pipeline. Previous, when set, is an
// earlier run the new one refines. ID is generated when empty.
type Request struct {
	ID       string
	Text     string
	Previous *Run
}

// Run is the aggregate a pipeline invocation builds. The orchestrator owns it
// until GenerateComplete returns; callers then treat it as read-only.
type Run struct {
	ID         string
	Request    string
	Features   artifact.Features
	Manifest   *artifact.Manifest
	Levels     [][]artifact.Spec
	Artifacts  *artifact.Set
	State      State
	Level      int
	Err        error
	FailedAt   State
	Started    time.Time
	Finished   time.Time
	Reconciled []string
	Timing     *state.Timing

	mu     sync.Mutex
	events []progress.Event
}

// Events returns the run's progress log in emission order.
func (r *Run) Events() []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Run) record(e progress.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Previous is the context a follow-up run's feature extraction sees.
func (r *Run) Previous() *planning.Previous {
	if r == nil {
		return nil
	}
	p := &planning.Previous{Request: r.Request}
	if r.Manifest != nil || r.Features.Description != "" {
		f := r.Features
		p.Features = &f
	}
	if r.Manifest != nil {
		p.Files = r.Manifest.Names()
	}
	return p
}

// Record summarizes the run for persistence.
func (r *Run) Record() *state.Record {
	rec := &state.Record{
		ID:         r.ID,
		Request:    r.Request,
		State:      string(r.State),
		Started:    r.Started,
		Finished:   r.Finished,
		Features:   r.Features,
		Manifest:   r.Manifest,
		Reconciled: r.Reconciled,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
		rec.FailedAt = string(r.FailedAt)
	}
	for _, level := range r.Levels {
		names := make([]string, len(level))
		for i, s := range level {
			names[i] = s.Name
		}
		rec.Levels = append(rec.Levels, names)
	}
	if r.Artifacts != nil {
		for _, a := range r.Artifacts.Sorted() {
			rec.Artifacts = append(rec.Artifacts, state.ArtifactSummary{Name: a.Name, Kind: a.Kind, Status: a.Status, Problems: a.Problems})
		}
	}
	if r.Timing != nil {
		rec.Timing = r.Timing.Entries()
	}
	return rec
}

// FromRecord rebuilds enough of a stored run to serve as Request.Previous.
func FromRecord(rec *state.Record) *Run {
	if rec == nil {
		return nil
	}
	return &Run{
		ID:       rec.ID,
		Request:  rec.Request,
		Features: rec.Features,
		Manifest: rec.Manifest,
		State:    State(rec.State),
		Started:  rec.Started,
		Finished: rec.Finished,
	}
}
