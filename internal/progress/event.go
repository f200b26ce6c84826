// Package progress carries pipeline progress events to observers.
package progress

import (
	"time"

	"github.com/jorge-barreto/appgen/internal/artifact"
)

// Step labels emitted by the pipeline.
const (
	StepExtracting  = "extracting"
	StepPlanning    = "planning"
	StepScheduled   = "scheduled"
	StepGenerating  = "generating"
	StepArtifact    = "artifact"
	StepReconciling = "reconciling"
	StepDone        = "done"
	StepFailed      = "failed"
	StepCancelled   = "cancelled"
)

// Event is one progress notification. Level is only meaningful for
// generating and artifact steps.
type Event struct {
	Step     string          `json:"step"`
	Detail   string          `json:"detail,omitempty"`
	Time     time.Time       `json:"time"`
	RunID    string          `json:"run_id,omitempty"`
	Level    int             `json:"level,omitempty"`
	Artifact string          `json:"artifact,omitempty"`
	Status   artifact.Status `json:"status,omitempty"`
}

// Sink receives events. Implementations must not block the caller for long.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return SinkFunc(func(e Event) {
		for _, s := range live {
			s.Publish(e)
		}
	})
}
