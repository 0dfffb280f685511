package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trekops/unifi-reporter/internal/model"
)

func sampleReport() model.Report {
	return model.Report{
		SiteName:    "Home",
		PeriodStart: time.Now().Add(-time.Hour),
		PeriodEnd:   time.Now(),
		GeneratedAt: time.Now(),
	}
}

func TestDelivery_WritesTextReportByDefault(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{OutputDir: dir}, nil)

	require.NoError(t, d.Deliver(context.Background(), sampleReport()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, filepath.Ext(entries[0].Name()) == ".txt")
}

func TestDelivery_BothFormatWritesTwoFiles(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{OutputDir: dir, Format: FormatBoth}, nil)

	require.NoError(t, d.Deliver(context.Background(), sampleReport()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDelivery_NoTempFileLeftAfterWrite(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{OutputDir: dir}, nil)
	require.NoError(t, d.Deliver(context.Background(), sampleReport()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestDelivery_PruneRemovesOldReports(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "report-old.txt")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o644))
	oldTime := time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, oldTime, oldTime))

	d := New(Config{OutputDir: dir, RetentionDays: 30}, nil)
	require.NoError(t, d.Deliver(context.Background(), sampleReport()))

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err), "old report should have been pruned")
}

func TestDelivery_CancelledContextAbortsBeforeWrite(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{OutputDir: dir}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Deliver(ctx, sampleReport())
	assert.Error(t, err)
}

func TestDelivery_SetRetentionDaysTakesEffectLive(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "report-old.txt")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o644))
	oldTime := time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, oldTime, oldTime))

	d := New(Config{OutputDir: dir, RetentionDays: 30}, nil)
	require.NoError(t, d.Deliver(context.Background(), sampleReport()))
	_, err := os.Stat(old)
	require.NoError(t, err, "30-day retention should not prune a 10-day-old report")

	d.SetRetentionDays(5)
	require.NoError(t, d.Deliver(context.Background(), sampleReport()))
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err), "lowered retention should prune the 10-day-old report")
}
