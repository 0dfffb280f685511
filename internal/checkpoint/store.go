// Package checkpoint persists the last-delivered-event high-water mark
// between runs. The write path creates its directory with os.MkdirAll and
// writes through a full temp-file-then-rename sequence, so a crash
// mid-write never leaves a partial checkpoint file.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/trekops/unifi-reporter/internal/model"
)

// Store reads and writes a single checkpoint file using an atomic
// temp-file-then-rename protocol. The zero value is not usable; use New.
type Store struct {
	path   string
	logger *slog.Logger
}

// New returns a Store bound to the given file path. The parent directory is
// created if missing.
func New(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("checkpoint: path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create directory: %w", err)
	}
	return &Store{path: path, logger: logger}, nil
}

// Read loads the checkpoint. A missing file returns the zero Checkpoint and
// no error. A corrupted file (bad JSON, unreadable) is logged as a warning
// and also treated as absent, per the store's invariant that corruption
// never surfaces as a hard failure.
func (s *Store) Read() (model.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.Checkpoint{}, nil
	}
	if err != nil {
		s.logger.Warn("checkpoint read failed, treating as absent", "path", s.path, "error", err)
		return model.Checkpoint{}, nil
	}
	var cp model.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		s.logger.Warn("checkpoint file corrupted, treating as absent", "path", s.path, "error", err)
		return model.Checkpoint{}, nil
	}
	if cp.SchemaVersion != model.CheckpointSchemaVersion {
		s.logger.Warn("checkpoint schema version mismatch, treating as absent",
			"path", s.path, "got", cp.SchemaVersion, "want", model.CheckpointSchemaVersion)
		return model.Checkpoint{}, nil
	}
	return cp, nil
}

// Write persists cp using write-temp, fsync, rename: a crash at any point
// leaves either the previous file intact or the new file fully formed,
// never a truncated one.
func (s *Store) Write(cp model.Checkpoint) error {
	cp.SchemaVersion = model.CheckpointSchemaVersion
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}
