package state

import (
	"fmt"
	"sync"
	"time"
)

type TimingEntry struct {
	Stage    string    `json:"stage"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end,omitempty"`
	Duration string    `json:"duration,omitempty"`
}

// Timing records how long each pipeline stage took. Safe for concurrent use.
type Timing struct {
	mu      sync.Mutex
	entries []TimingEntry
	now     func() time.Time
}

func NewTiming() *Timing {
	return &Timing{now: time.Now}
}

// Start opens a new entry for stage.
func (t *Timing) Start(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, TimingEntry{Stage: stage, Start: t.now()})
}

// End closes the most recent open entry for stage and returns its duration.
func (t *Timing) End(stage string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := &t.entries[i]
		if e.Stage == stage && e.End.IsZero() {
			e.End = t.now()
			d := e.End.Sub(e.Start)
			e.Duration = FormatDuration(d)
			return d
		}
	}
	return 0
}

// Entries returns a copy of the recorded entries.
func (t *Timing) Entries() []TimingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TimingEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func FormatDuration(d time.Duration) string {
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %02ds", m, s)
}
