package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jorge-barreto/appgen/internal/artifact"
)

// ErrNoRuns is returned by LoadLatest when nothing has been recorded yet.
var ErrNoRuns = errors.New("no recorded runs")

// ArtifactSummary is an artifact without its content.
type ArtifactSummary struct {
	Name     string          `json:"name"`
	Kind     artifact.Kind   `json:"kind"`
	Status   artifact.Status `json:"status"`
	Problems []string        `json:"problems,omitempty"`
}

// Record is the persisted summary of one pipeline run.
type Record struct {
	ID         string             `json:"id"`
	Request    string             `json:"request"`
	State      string             `json:"state"`
	FailedAt   string             `json:"failed_at,omitempty"`
	Error      string             `json:"error,omitempty"`
	Started    time.Time          `json:"started"`
	Finished   time.Time          `json:"finished,omitempty"`
	Features   artifact.Features  `json:"features"`
	Manifest   *artifact.Manifest `json:"manifest,omitempty"`
	Levels     [][]string         `json:"levels,omitempty"`
	Artifacts  []ArtifactSummary  `json:"artifacts,omitempty"`
	Reconciled []string           `json:"reconciled,omitempty"`
	Timing     []TimingEntry      `json:"timing,omitempty"`
	OutputDir  string             `json:"output_dir,omitempty"`
}

// Counts tallies artifacts by status.
func (r *Record) Counts() map[artifact.Status]int {
	out := make(map[artifact.Status]int)
	for _, a := range r.Artifacts {
		out[a.Status]++
	}
	return out
}

// Save writes the record under runs/ and as latest.json.
func (r *Record) Save(stateDir string) error {
	if r.ID == "" {
		return fmt.Errorf("saving run record: missing id")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(RecordPath(stateDir, r.ID), data, 0644); err != nil {
		return fmt.Errorf("saving run record: %w", err)
	}
	if err := writeFileAtomic(LatestPath(stateDir), data, 0644); err != nil {
		return fmt.Errorf("saving latest run: %w", err)
	}
	return nil
}

// Load reads the record of one run.
func Load(stateDir, runID string) (*Record, error) {
	return loadFile(RecordPath(stateDir, runID))
}

// LoadLatest reads the most recently saved record.
func LoadLatest(stateDir string) (*Record, error) {
	r, err := loadFile(LatestPath(stateDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoRuns
	}
	return r, err
}

// List returns every recorded run, newest first.
func List(stateDir string) ([]*Record, error) {
	entries, err := os.ReadDir(filepath.Join(stateDir, "runs"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []*Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		r, err := loadFile(filepath.Join(stateDir, "runs", e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.After(out[j].Started) })
	return out, nil
}

func loadFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &r, nil
}
