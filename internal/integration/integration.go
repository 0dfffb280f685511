// Package integration implements the optional external-data-provider
// framework: a Registry of named integrations, each participating only
// when configured, fanned out concurrently by a Runner with a
// per-integration timeout and circuit breaker.
//
// Fan-out starts one goroutine per configured integration, joined by a
// WaitGroup with results appended to mutex-guarded slices, with a per-key
// circuit breaker (internal/breaker)
// shielding the rest of a run from one integration's repeated failures.
package integration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/trekops/unifi-reporter/internal/breaker"
	"github.com/trekops/unifi-reporter/internal/collector"
	"github.com/trekops/unifi-reporter/internal/model"
)

// errPanicked is returned to the caller's Errors slice when an integration
// panics during Fetch; the panic itself never propagates.
var errPanicked = errors.New("integration panicked during fetch")

// DefaultTimeout is the per-integration wall-clock deadline for Fetch.
const DefaultTimeout = 30 * time.Second

// Integration is an optional external-data provider. Implementations must
// never block past the context deadline passed to Fetch and must never
// panic; the Runner isolates both failure modes regardless, but a
// well-behaved integration returns promptly on ctx.Done().
type Integration interface {
	// Name is the stable identifier used for config lookup, logging, the
	// circuit breaker key, and the IntegrationSection name.
	Name() string
	// IsConfigured reports whether credentials/settings for this
	// integration are present. An unconfigured integration is silently
	// skipped by the Runner.
	IsConfigured() bool
	// ValidateConfig returns a non-fatal warning string for partial or
	// suspect configuration, or "" if configuration looks sound.
	ValidateConfig() string
	// Fetch is the only I/O entry point. It must respect ctx's deadline.
	Fetch(ctx context.Context, window collector.Window) (map[string]any, error)
}

// Registry holds integration constructors, keyed by name, so the driver can
// build the active set from configuration without a compile-time list.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]func() Integration
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]func() Integration)}
}

// Register adds a named constructor. Re-registering a name overwrites it.
func (r *Registry) Register(name string, ctor func() Integration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// Build instantiates every registered integration.
func (r *Registry) Build() []Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Integration, 0, len(r.ctors))
	for _, ctor := range r.ctors {
		out = append(out, ctor())
	}
	return out
}

// Result is what the Runner returns for one invocation: the sections ready
// to merge into a Report, plus any errors worth surfacing to the driver's
// run log (sections already carry their own error strings; Errors is for
// diagnostics/metrics, not report content).
type Result struct {
	Sections []model.IntegrationSection
	Errors   []error
}

// Runner executes every configured integration concurrently, isolating
// panics/timeouts/errors per integration behind a named circuit breaker.
type Runner struct {
	Timeout       time.Duration
	BreakerConfig breaker.Config
	Logger        *slog.Logger

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
}

func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		Timeout:       DefaultTimeout,
		BreakerConfig: breaker.DefaultConfig(),
		Logger:        logger,
		breakers:      make(map[string]*breaker.Breaker),
	}
}

func (r *Runner) breakerFor(name string) *breaker.Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = breaker.New(r.BreakerConfig)
		r.breakers[name] = b
	}
	return b
}

// BreakerState exposes a named integration's current breaker state, mainly
// for health/diagnostics surfaces.
func (r *Runner) BreakerState(name string) string {
	return r.breakerFor(name).State()
}

// Run fans out to every configured integration from integrations, each
// bounded by r.Timeout (capped by ctx's own deadline if tighter) and its own
// circuit breaker. Every integration produces exactly one section: either
// populated with Data, or tagged with Error. A panic inside an integration
// is recovered and surfaces as an error-tagged section; it never reaches
// the other integrations or the caller.
func (r *Runner) Run(ctx context.Context, integrations []Integration, window collector.Window) Result {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sections []model.IntegrationSection
		errs     []error
	)

	for _, in := range integrations {
		in := in
		if !in.IsConfigured() {
			continue
		}
		if warning := in.ValidateConfig(); warning != "" {
			r.Logger.Warn("integration config warning", "integration", in.Name(), "warning", warning)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			section, err := r.runOne(ctx, in, window)
			mu.Lock()
			sections = append(sections, section)
			if err != nil {
				errs = append(errs, err)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return Result{Sections: sections, Errors: errs}
}

func (r *Runner) runOne(ctx context.Context, in Integration, window collector.Window) (section model.IntegrationSection, outErr error) {
	name := in.Name()
	b := r.breakerFor(name)

	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("integration panicked", "integration", name, "panic", rec)
			b.RecordFailure()
			section = model.IntegrationSection{Name: name, Error: "panic during fetch"}
			outErr = errPanicked
		}
	}()

	if err := b.Allow(); err != nil {
		return model.IntegrationSection{Name: name, Error: "circuit open"}, model.ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	data, err := in.Fetch(callCtx, window)
	if err != nil {
		b.RecordFailure()
		errMsg := err.Error()
		if callCtx.Err() != nil {
			errMsg = "timeout"
		}
		return model.IntegrationSection{Name: name, Error: errMsg}, err
	}

	b.RecordSuccess()
	return model.IntegrationSection{Name: name, Data: data}, nil
}
