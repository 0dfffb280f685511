// Package breaker implements a per-key circuit breaker: closed -> open
// after a consecutive-failure streak -> half-open probe after a cooldown.
// There is no token-bucket rate-shaping here, since neither the
// integration framework nor the REST collector need adaptive throughput
// shaping, only fail-fast isolation.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Allow when the breaker is open and the reset
// timeout has not yet elapsed.
var ErrOpen = errors.New("breaker: circuit open")

type state int

const (
	closed state = iota
	open
	halfOpen
)

func (s state) String() string {
	switch s {
	case open:
		return "open"
	case halfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config controls the failure/recovery thresholds.
type Config struct {
	// FailMax is the number of consecutive failures that opens the circuit.
	FailMax int
	// ResetTimeout is how long the circuit stays open before a single
	// half-open probe is allowed through.
	ResetTimeout time.Duration
}

// DefaultConfig returns the integration framework's default thresholds.
func DefaultConfig() Config {
	return Config{FailMax: 3, ResetTimeout: 60 * time.Second}
}

// Breaker is a single named circuit; state is in-memory only and resets on
// process restart, per spec.
type Breaker struct {
	cfg   Config
	clock Clock

	mu            sync.Mutex
	st            state
	consecutiveFails int
	nextAttempt   time.Time
	probeInFlight bool
}

// New constructs a Breaker. A zero Config falls back to DefaultConfig.
func New(cfg Config) *Breaker {
	if cfg.FailMax <= 0 {
		cfg.FailMax = DefaultConfig().FailMax
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultConfig().ResetTimeout
	}
	return &Breaker{cfg: cfg, clock: realClock{}}
}

// WithClock overrides the clock for testing; returns the receiver for
// chaining.
func (b *Breaker) WithClock(c Clock) *Breaker {
	if c != nil {
		b.clock = c
	}
	return b
}

// Allow reports whether a call may proceed. When the breaker is open and
// the cooldown has elapsed, exactly one caller is admitted as a half-open
// probe; concurrent callers during that window are rejected with ErrOpen
// until the probe resolves via RecordSuccess/RecordFailure.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.st {
	case closed:
		return nil
	case open:
		if b.clock.Now().Before(b.nextAttempt) {
			return ErrOpen
		}
		if b.probeInFlight {
			return ErrOpen
		}
		b.st = halfOpen
		b.probeInFlight = true
		return nil
	case halfOpen:
		if b.probeInFlight {
			return ErrOpen
		}
		b.probeInFlight = true
		return nil
	default:
		return nil
	}
}

// RecordSuccess closes the circuit (or keeps it closed) and clears the
// failure streak.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails = 0
	b.st = closed
	b.probeInFlight = false
}

// RecordFailure increments the consecutive-failure streak, opening the
// circuit once it reaches FailMax (or immediately re-opening on a failed
// half-open probe).
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeInFlight = false
	if b.st == halfOpen {
		b.openLocked()
		return
	}
	b.consecutiveFails++
	if b.consecutiveFails >= b.cfg.FailMax {
		b.openLocked()
	}
}

func (b *Breaker) openLocked() {
	b.st = open
	b.nextAttempt = b.clock.Now().Add(b.cfg.ResetTimeout)
}

// State returns the current state name, for diagnostics/snapshots.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st.String()
}

// Run executes fn if the breaker allows it, recording success/failure based
// on the returned error and on ctx deadline expiry (treated as a failure).
func Run(ctx context.Context, b *Breaker, fn func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}
