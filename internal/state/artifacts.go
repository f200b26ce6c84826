package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates the state directory structure.
func EnsureDir(stateDir string) error {
	for _, d := range []string{stateDir, filepath.Join(stateDir, "runs")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating state dir %s: %w", d, err)
		}
	}
	return nil
}

// RecordPath returns the path of one run's record.
func RecordPath(stateDir, runID string) string {
	return filepath.Join(stateDir, "runs", runID+".json")
}

// LatestPath returns the path of the most recent run's record.
func LatestPath(stateDir string) string {
	return filepath.Join(stateDir, "latest.json")
}

// HistoryPath returns the path of the event history shared by all runs.
func HistoryPath(stateDir string) string {
	return filepath.Join(stateDir, "events.jsonl")
}
