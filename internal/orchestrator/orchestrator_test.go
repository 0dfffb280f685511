package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trekops/unifi-reporter/internal/collector"
	"github.com/trekops/unifi-reporter/internal/model"
)

type fakeCollector struct {
	name    string
	entries []model.LogEntry
	err     error
}

func (f fakeCollector) Name() string { return f.name }
func (f fakeCollector) Collect(ctx context.Context, window collector.Window) ([]model.LogEntry, error) {
	return f.entries, f.err
}

func entryAt(source model.Source, sec int64, msg, mac string) model.LogEntry {
	return model.LogEntry{
		ID:        msg + mac,
		Timestamp: time.Unix(sec, 0).UTC(),
		Source:    source,
		EventType: "EVT",
		Message:   msg,
		DeviceMAC: model.MAC(mac),
	}
}

func TestOrchestrator_MergesAndDedupesAcrossSources(t *testing.T) {
	push := fakeCollector{name: "push", entries: []model.LogEntry{
		entryAt(model.SourcePush, 10, "a", "aa:bb:cc:dd:ee:01"),
	}}
	rest := fakeCollector{name: "rest", entries: []model.LogEntry{
		entryAt(model.SourceREST, 10, "a", "aa:bb:cc:dd:ee:01"), // duplicate of push entry
		entryAt(model.SourceREST, 20, "b", "aa:bb:cc:dd:ee:02"),
	}}
	orch := New(push, rest, nil, Config{MinEntriesForSufficient: 100, ShellEnabled: false}, nil)

	got, err := orch.Collect(context.Background(), collector.Window{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
}

func TestOrchestrator_SufficientPushSkipsRestAndShell(t *testing.T) {
	entries := make([]model.LogEntry, 15)
	for i := range entries {
		entries[i] = entryAt(model.SourcePush, int64(i), "m", "aa:bb:cc:dd:ee:01")
	}
	push := fakeCollector{name: "push", entries: entries}
	rest := fakeCollector{name: "rest", err: errors.New("should not be called, but if it is, error")}
	orch := New(push, rest, nil, Config{MinEntriesForSufficient: 10}, nil)

	got, err := orch.Collect(context.Background(), collector.Window{})
	require.NoError(t, err)
	assert.Len(t, got, 15)
}

func TestOrchestrator_AllSourcesFailedReturnsError(t *testing.T) {
	push := fakeCollector{name: "push", err: errors.New("down")}
	rest := fakeCollector{name: "rest", err: errors.New("down")}
	orch := New(push, rest, nil, Config{MinEntriesForSufficient: 10}, nil)

	_, err := orch.Collect(context.Background(), collector.Window{})
	assert.ErrorIs(t, err, model.ErrAllSourcesFailed)
}

func TestOrchestrator_PartialSuccessIsNotAnError(t *testing.T) {
	push := fakeCollector{name: "push", err: errors.New("down")}
	rest := fakeCollector{name: "rest", entries: []model.LogEntry{entryAt(model.SourceREST, 1, "x", "")}}
	orch := New(push, rest, nil, Config{MinEntriesForSufficient: 10}, nil)

	got, err := orch.Collect(context.Background(), collector.Window{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOrchestrator_OutputIsSortedAscending(t *testing.T) {
	push := fakeCollector{name: "push", entries: []model.LogEntry{
		entryAt(model.SourcePush, 30, "c", ""),
		entryAt(model.SourcePush, 10, "a", ""),
		entryAt(model.SourcePush, 20, "b", ""),
	}}
	orch := New(push, nil, nil, Config{MinEntriesForSufficient: 100}, nil)
	got, err := orch.Collect(context.Background(), collector.Window{})
	require.NoError(t, err)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp))
	}
}

func TestOrchestrator_SetMinEntriesForSufficientTakesEffectLive(t *testing.T) {
	entries := make([]model.LogEntry, 5)
	for i := range entries {
		entries[i] = entryAt(model.SourcePush, int64(i), "m", "aa:bb:cc:dd:ee:01")
	}
	push := fakeCollector{name: "push", entries: entries}
	rest := fakeCollector{name: "rest", entries: []model.LogEntry{
		entryAt(model.SourceREST, 100, "r", "aa:bb:cc:dd:ee:02"),
	}}
	orch := New(push, rest, nil, Config{MinEntriesForSufficient: 100}, nil)

	got, err := orch.Collect(context.Background(), collector.Window{})
	require.NoError(t, err)
	assert.Len(t, got, 6, "push alone is insufficient, so rest tops it up")

	orch.SetMinEntriesForSufficient(5)
	got, err = orch.Collect(context.Background(), collector.Window{})
	require.NoError(t, err, "lowered threshold should let push alone satisfy sufficiency")
	assert.Len(t, got, 5)
}
