// Package driver implements the pipeline driver: one scheduled invocation's
// load-checkpoint -> window -> concurrent collection+integrations -> rules
// -> aggregators -> report -> delivery -> checkpoint-advance-on-success-only
// sequence.
//
// Collection and integration fetching fan out concurrently via
// errgroup.Group (golang.org/x/sync/errgroup) rather than a raw
// sync.WaitGroup, since the driver needs first-error propagation with
// context cancellation for the collection side while still tolerating a
// failed integration runner (integrations are best-effort, collection is
// not).
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trekops/unifi-reporter/internal/aggregate"
	"github.com/trekops/unifi-reporter/internal/checkpoint"
	"github.com/trekops/unifi-reporter/internal/collector"
	"github.com/trekops/unifi-reporter/internal/delivery"
	"github.com/trekops/unifi-reporter/internal/integration"
	"github.com/trekops/unifi-reporter/internal/model"
	"github.com/trekops/unifi-reporter/internal/orchestrator"
	"github.com/trekops/unifi-reporter/internal/rules"
)

// Config controls window sizing and per-run deadlines.
type Config struct {
	SiteName            string
	ControllerType      string
	InitialLookback     time.Duration
	IntegrationDeadline time.Duration
	RunDeadline         time.Duration

	// OnCollected, if set, is called with the entries gathered by this run
	// once collection succeeds, before rule evaluation. Integrations that
	// need derived state from collected events (e.g. geoip's source-IP
	// tracker) hook in here rather than depending on this run's own
	// concurrently-executing Fetch.
	OnCollected func(entries []model.LogEntry)
}

func (c *Config) setDefaults() {
	if c.InitialLookback <= 0 {
		c.InitialLookback = 24 * time.Hour
	}
	if c.IntegrationDeadline <= 0 {
		c.IntegrationDeadline = 30 * time.Second
	}
	if c.RunDeadline <= 0 {
		c.RunDeadline = 5 * time.Minute
	}
}

// Driver ties every pipeline stage together for one scheduled run.
type Driver struct {
	cfg Config

	checkpoints  *checkpoint.Store
	orchestrator *orchestrator.Orchestrator
	integrations []integration.Integration
	runner       *integration.Runner
	engine       *rules.Engine
	aggregators  []Aggregator
	delivery     delivery.Delivery
	logger       *slog.Logger

	now func() time.Time
}

// Aggregator is the shared shape of the post-pass detectors in
// internal/aggregate; defined here so the driver depends only on the
// interface, not the concrete aggregator types.
type Aggregator interface {
	Run(entries []model.LogEntry) []model.Finding
}

func New(
	cfg Config,
	checkpoints *checkpoint.Store,
	orch *orchestrator.Orchestrator,
	integrations []integration.Integration,
	runner *integration.Runner,
	engine *rules.Engine,
	aggregators []Aggregator,
	del delivery.Delivery,
	logger *slog.Logger,
) *Driver {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		cfg:          cfg,
		checkpoints:  checkpoints,
		orchestrator: orch,
		integrations: integrations,
		runner:       runner,
		engine:       engine,
		aggregators:  aggregators,
		delivery:     del,
		logger:       logger,
		now:          time.Now,
	}
}

// RunOnce executes exactly one scheduled invocation end to end.
func (d *Driver) RunOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, d.cfg.RunDeadline)
	defer cancel()

	cp, err := d.checkpoints.Read()
	if err != nil {
		return fmt.Errorf("driver: read checkpoint: %w", err)
	}

	now := d.now().UTC()
	window := collector.Window{Start: now.Add(-d.cfg.InitialLookback), End: now}
	if cp.Present() {
		start := cp.WindowStart()
		if start.After(window.Start) {
			window.Start = start
		}
	}

	var (
		entries  []model.LogEntry
		collErr  error
		intState integration.Result
	)

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		entries, collErr = d.orchestrator.Collect(gCtx, window)
		return collErr
	})
	g.Go(func() error {
		integrationCtx, intCancel := context.WithTimeout(runCtx, d.cfg.IntegrationDeadline)
		defer intCancel()
		intState = d.runner.Run(integrationCtx, d.integrations, window)
		return nil
	})

	if err := g.Wait(); err != nil {
		d.logger.Error("run failed: all sources unavailable", "error", err)
		return fmt.Errorf("driver: %w", err)
	}

	if d.cfg.OnCollected != nil {
		d.cfg.OnCollected(entries)
	}

	findings := d.engine.Evaluate(entries)
	for _, agg := range d.aggregators {
		findings = append(findings, agg.Run(entries)...)
	}

	report := model.Report{
		SiteName:            d.cfg.SiteName,
		ControllerType:      d.cfg.ControllerType,
		PeriodStart:         window.Start,
		PeriodEnd:           window.End,
		GeneratedAt:         now,
		Findings:            findings,
		IntegrationSections: intState.Sections,
	}

	if err := d.delivery.Deliver(runCtx, report); err != nil {
		d.logger.Error("delivery failed, checkpoint not advanced", "error", err)
		return fmt.Errorf("%w: %v", model.ErrDelivery, err)
	}

	newCheckpointTime := window.End
	if last := report.LastEventTime(); last.After(newCheckpointTime) {
		newCheckpointTime = last
	}
	if err := d.checkpoints.Write(model.Checkpoint{LastDeliveredEventTime: newCheckpointTime}); err != nil {
		d.logger.Error("checkpoint write failed after successful delivery", "error", err)
		return fmt.Errorf("driver: write checkpoint: %w", err)
	}

	d.logger.Info("run complete",
		"entries", len(entries), "findings", len(findings),
		"integration_sections", len(intState.Sections), "window_start", window.Start, "window_end", window.End)
	return nil
}
