// Package orchestrator implements the source-selection and merge protocol:
// attempt PUSH, fall through to REST and then SHELL when a source is
// insufficient, merge (never replace) results across sources, deduplicate
// by (timestamp, message, device_mac), and return a timestamp-ascending
// sequence with source-priority tie-breaking.
//
// Sources are never mutually exclusive: a partial PUSH feed is topped up
// by REST rather than discarded, following the same "collect what's
// available, never abort on partial failure" philosophy as a multi-stage
// worker pipeline that keeps whatever stages produced results.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/trekops/unifi-reporter/internal/collector"
	"github.com/trekops/unifi-reporter/internal/model"
)

// Config controls fallback and sufficiency thresholds.
type Config struct {
	MinEntriesForSufficient int
	ShellEnabled            bool
}

// Orchestrator drives the PUSH -> REST -> SHELL fallback chain.
type Orchestrator struct {
	push  collector.Collector
	rest  collector.Collector
	shell collector.Collector

	minEntriesForSufficient atomic.Int64
	shellEnabled            bool

	logger *slog.Logger
}

func New(push, rest, shell collector.Collector, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinEntriesForSufficient <= 0 {
		cfg.MinEntriesForSufficient = 10
	}
	o := &Orchestrator{push: push, rest: rest, shell: shell, shellEnabled: cfg.ShellEnabled, logger: logger}
	o.minEntriesForSufficient.Store(int64(cfg.MinEntriesForSufficient))
	return o
}

// SetMinEntriesForSufficient updates the sufficiency threshold live; a
// config watcher calls this after a validated reload instead of rebuilding
// the orchestrator, since the collectors themselves hold the connections.
func (o *Orchestrator) SetMinEntriesForSufficient(n int) {
	if n <= 0 {
		n = 10
	}
	o.minEntriesForSufficient.Store(int64(n))
}

// Collect runs the fallback chain over window and returns a deduplicated,
// timestamp-ascending merge of every source that produced results.
func (o *Orchestrator) Collect(ctx context.Context, window collector.Window) ([]model.LogEntry, error) {
	var merged []model.LogEntry
	var anySucceeded bool

	if o.push != nil {
		entries, err := o.push.Collect(ctx, window)
		if err != nil {
			o.logger.Warn("push collector failed", "error", err)
		} else {
			anySucceeded = true
			merged = append(merged, entries...)
		}
	}

	threshold := int(o.minEntriesForSufficient.Load())

	if len(merged) < threshold && o.rest != nil {
		entries, err := o.rest.Collect(ctx, window)
		if err != nil {
			o.logger.Warn("rest collector failed", "error", err)
		} else {
			anySucceeded = true
			merged = append(merged, entries...)
		}
	}

	if len(merged) < threshold && o.shellEnabled && o.shell != nil {
		entries, err := o.shell.Collect(ctx, window)
		if err != nil {
			o.logger.Warn("shell collector failed", "error", err)
		} else {
			anySucceeded = true
			merged = append(merged, entries...)
		}
	}

	if !anySucceeded {
		return nil, fmt.Errorf("%w: push/rest/shell all failed", model.ErrAllSourcesFailed)
	}

	return dedupeAndSort(merged), nil
}

func dedupeAndSort(entries []model.LogEntry) []model.LogEntry {
	seen := make(map[string]bool, len(entries))
	out := make([]model.LogEntry, 0, len(entries))
	for _, e := range entries {
		key := e.DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Source.Priority() < out[j].Source.Priority()
	})
	return out
}
