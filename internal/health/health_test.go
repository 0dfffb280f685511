package health

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_RecordSuccessThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.json")
	w, err := NewWriter(path)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, w.RecordSuccess(now))

	r, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Empty(t, r.LastError)
}

func TestWriter_RecordFailureCarriesErrorMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.json")
	w, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.RecordFailure(time.Now(), errors.New("all sources failed")))

	r, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Equal(t, "all sources failed", r.LastError)
}

func TestWriter_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "health.json")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.RecordSuccess(time.Now()))

	entries, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
