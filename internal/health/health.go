// Package health implements the health-file surface: a small JSON document
// at a well-known path, updated after every run attempt, that an external
// orchestrator polls. The driver has exactly one thing to report per run,
// whether it succeeded, so the body stays a single two-state status rather
// than a multi-probe rollup.
package health

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Status is the health body's state field: "healthy" or "unhealthy".
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Report is the JSON body written to the health file.
type Report struct {
	Status    Status    `json:"status"`
	LastRunAt time.Time `json:"last_run_at"`
	LastError string    `json:"last_error,omitempty"`
}

// Writer persists Report to a fixed path using the same atomic
// temp-file-then-rename protocol as internal/checkpoint, so a reader never
// observes a partially-written body.
type Writer struct {
	path string
	mu   sync.Mutex
}

func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("health: create directory: %w", err)
	}
	return &Writer{path: path}, nil
}

// RecordSuccess writes a healthy report for the given run time.
func (w *Writer) RecordSuccess(at time.Time) error {
	return w.write(Report{Status: StatusHealthy, LastRunAt: at})
}

// RecordFailure writes an unhealthy report carrying the failure reason.
func (w *Writer) RecordFailure(at time.Time, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return w.write(Report{Status: StatusUnhealthy, LastRunAt: at, LastError: msg})
}

func (w *Writer) write(report Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("health: marshal: %w", err)
	}
	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(w.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("health: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("health: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("health: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("health: close temp file: %w", err)
	}
	return os.Rename(tmpPath, w.path)
}

// Read loads the current health report, for diagnostics or --test probing.
func Read(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("health: parse %s: %w", path, err)
	}
	return r, nil
}
