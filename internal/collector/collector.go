// Package collector defines the Collector interface shared by the three
// concrete log sources (push, rest, shell): a single method returning a
// result for a unit of work, no inheritance hierarchy, so the orchestrator
// can depend on the interface alone.
package collector

import (
	"context"
	"time"

	"github.com/trekops/unifi-reporter/internal/model"
)

// Window bounds a collection request.
type Window struct {
	Start time.Time
	End   time.Time
}

// Collector produces a finite batch of LogEntry values for a time window.
// Implementations must never panic; collection errors come back as the
// error return so the orchestrator can fall through to the next source.
type Collector interface {
	// Name identifies the collector for logging/metrics (e.g. "push").
	Name() string
	Collect(ctx context.Context, window Window) ([]model.LogEntry, error)
}
