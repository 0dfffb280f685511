// Package schedule drives the pipeline driver on a preset/cron/one-shot
// schedule with single-flight run coalescing: at most one invocation runs
// at a time, and a tick that lands mid-run is coalesced into the run in
// progress rather than queued; the next scheduled tick starts a fresh run.
// A run still in flight past the grace window is logged as overdue.
//
// Cron wiring goes through github.com/robfig/cron/v3, wrapped in a small
// struct with Start/Stop. The single-execution guard uses a mutex-guarded
// in-progress flag rather than sync.Once, since the guard must reset after
// each run.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// presets maps the named schedule shortcuts to conventional 5-field cron
// expressions; StartCron adds the seconds field robfig/cron expects.
var presets = map[string]string{
	"hourly":       "0 * * * *",
	"every15min":   "*/15 * * * *",
	"every30min":   "*/30 * * * *",
	"daily":        "0 2 * * *",
	"every6hours":  "0 */6 * * *",
}

// ResolvePreset translates a preset name into a cron expression. Returns
// false if name is not a known preset.
func ResolvePreset(name string) (string, bool) {
	expr, ok := presets[name]
	return expr, ok
}

// RunFunc is the pipeline invocation the scheduler coalesces.
type RunFunc func(ctx context.Context) error

// Scheduler runs RunFunc on a cron schedule (or once, for a one-shot
// configuration), ensuring at most one invocation is ever in flight; a
// tick that lands while a run is still in progress is coalesced into that
// run rather than queued, with a louder warning once the run has been in
// flight longer than graceWindow.
type Scheduler struct {
	cron        *cron.Cron
	run         RunFunc
	logger      *slog.Logger
	graceWindow time.Duration

	mu         sync.Mutex
	inProgress bool
	lastTickAt time.Time
}

// DefaultGraceWindow is how long a run may stay in flight before a
// coalesced tick logs it as having exceeded the grace window.
const DefaultGraceWindow = time.Hour

// New constructs a Scheduler. location defaults to UTC if nil.
func New(run RunFunc, location *time.Location, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(location), cron.WithSeconds()),
		run:         run,
		logger:      logger,
		graceWindow: DefaultGraceWindow,
	}
}

// StartCron registers expr (a standard 5-field cron expression; a 6-field
// expression with seconds is rejected) and starts the scheduler loop. Call
// Stop to shut down.
func (s *Scheduler) StartCron(expr string) error {
	// robfig/cron requires cron.WithSeconds() expressions to carry 6
	// fields; callers supply the conventional 5-field form, so a leading
	// "0" (run at second 0) is prefixed transparently.
	normalized := "0 " + expr
	if _, err := s.cron.AddFunc(normalized, s.tick); err != nil {
		return fmt.Errorf("schedule: invalid cron expression %q: %w", expr, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "cron", expr)
	return nil
}

// RunOnceAndExit performs exactly one invocation, for the no-schedule
// configuration: run under the scheduler, or once and exit, when no
// schedule is set.
func (s *Scheduler) RunOnceAndExit(ctx context.Context) error {
	return s.attempt(ctx)
}

func (s *Scheduler) tick() {
	// cron.Job callbacks carry no context; a background one bounded by
	// the driver's own per-run deadline is correct here since the
	// scheduler itself imposes no additional timeout.
	if err := s.attempt(context.Background()); err != nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
}

func (s *Scheduler) attempt(ctx context.Context) error {
	s.mu.Lock()
	now := time.Now()
	if s.inProgress {
		elapsed := now.Sub(s.lastTickAt)
		if elapsed > s.graceWindow {
			s.logger.Warn("previous run exceeded grace window, still coalescing this tick", "elapsed", elapsed)
		} else {
			s.logger.Warn("previous run still in progress, coalescing this tick", "elapsed", elapsed)
		}
		s.mu.Unlock()
		return nil
	}
	s.inProgress = true
	s.lastTickAt = now
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inProgress = false
		s.mu.Unlock()
	}()

	return s.run(ctx)
}

// Stop drains and stops the cron loop, waiting for any in-flight jobs.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
}
