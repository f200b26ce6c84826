package state

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/jorge-barreto/appgen/internal/progress"
)

// History appends progress events to a JSON-lines file. It implements
// progress.Sink; write failures are logged, never returned to the publisher.
type History struct {
	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
	path string
	log  *zap.Logger
}

// OpenHistory opens the event history under stateDir for appending.
func OpenHistory(stateDir string, log *zap.Logger) (*History, error) {
	if log == nil {
		log = zap.NewNop()
	}
	path := HistoryPath(stateDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return &History{f: f, enc: json.NewEncoder(f), path: path, log: log}, nil
}

func (h *History) Publish(e progress.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.f == nil {
		return
	}
	if err := h.enc.Encode(e); err != nil {
		h.log.Warn("recording progress event", zap.String("path", h.path), zap.Error(err))
	}
}

func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}

// ReadHistory returns the recorded events of one run in emission order. An
// empty runID returns every event.
func ReadHistory(stateDir, runID string) ([]progress.Event, error) {
	f, err := os.Open(HistoryPath(stateDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []progress.Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e progress.Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			// a torn final line from a crash is not fatal
			continue
		}
		if runID == "" || e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, sc.Err()
}
