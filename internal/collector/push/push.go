// Package push implements the PUSH log source: a long-lived streaming
// connection to the controller's event websocket, reusing the REST
// session's auth cookies, feeding a bounded in-memory ring buffer that a
// run merely drains. Reconnection uses bounded jittered backoff; events
// lost during a disconnect are accepted, since REST re-collects the same
// window from controller-side history on the next run.
//
// The background reader goroutine runs independent of any single pipeline
// invocation and is joined via sync.WaitGroup on Stop.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trekops/unifi-reporter/internal/collector"
	"github.com/trekops/unifi-reporter/internal/model"
)

// relevantMessages are the only meta.message values the push collector
// surfaces as log entries; everything else is discarded on arrival.
var relevantMessages = map[string]bool{
	"sta:sync":         true,
	"wu.connected":     true,
	"wu.disconnected":  true,
	"wu.roam":          true,
	"wu.roam_radio":    true,
}

// envelope mirrors the controller's push wire format.
type envelope struct {
	Meta struct {
		Message string `json:"message"`
	} `json:"meta"`
	Data []map[string]any `json:"data"`
}

// Config configures the push collector.
type Config struct {
	URL             string
	CookieHeader    func() string // supplies the current REST session cookie
	BufferSize      int
	MinBackoff      time.Duration
	MaxBackoff      time.Duration
	HandshakeTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 10_000
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
}

// Collector is the PUSH source. Call Start once at service startup and
// Stop at shutdown; Collect is safe to call concurrently from many runs.
type Collector struct {
	cfg    Config
	logger *slog.Logger

	buf *ringBuffer

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(cfg Config, logger *slog.Logger) *Collector {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{cfg: cfg, logger: logger, buf: newRingBuffer(cfg.BufferSize)}
}

func (c *Collector) Name() string { return "push" }

// Start launches the background reader. It is idempotent; calling it twice
// is a no-op. The goroutine's lifecycle is tied to the process, not to any
// one driver run.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.started = true
	c.wg.Add(1)
	go c.run(runCtx)
}

// Stop cancels the background reader and waits for it to exit. Callers
// must do this before the run scheduler is stopped, so no run observes a
// half-torn-down collector.
func (c *Collector) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	started := c.started
	c.mu.Unlock()
	if !started {
		return
	}
	cancel()
	c.wg.Wait()
}

// Collect drains whatever has accumulated in the ring buffer and filters it
// to the requested window; it never blocks on network I/O.
func (c *Collector) Collect(ctx context.Context, window collector.Window) ([]model.LogEntry, error) {
	all := c.buf.Drain()
	out := make([]model.LogEntry, 0, len(all))
	for _, e := range all {
		if !e.Timestamp.Before(window.Start) && !e.Timestamp.After(window.End) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Dropped returns the number of events overwritten while the buffer was at
// capacity, for health/metrics reporting.
func (c *Collector) Dropped() int64 { return c.buf.Dropped() }

func (c *Collector) run(ctx context.Context) {
	defer c.wg.Done()
	backoff := c.cfg.MinBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		connectedAt := time.Now()
		err := c.readOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn("push stream disconnected, reconnecting", "error", err, "backoff", backoff)
		}
		// A connection that stayed up at least as long as the current max
		// backoff proved the controller is reachable again; reset so a
		// later disconnect doesn't inherit an inflated wait from an
		// outage that has already ended.
		if time.Since(connectedAt) >= c.cfg.MaxBackoff {
			backoff = c.cfg.MinBackoff
		}
		jitter := time.Duration(rand.Int63n(int64(backoff)/2 + 1))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
}

func (c *Collector) readOnce(ctx context.Context) error {
	header := http.Header{}
	if c.cfg.CookieHeader != nil {
		if ck := c.cfg.CookieHeader(); ck != "" {
			header.Set("Cookie", ck)
		}
	}
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if !relevantMessages[env.Meta.Message] {
			continue
		}
		for _, rec := range env.Data {
			ts, err := model.ParseTimestamp(rec["time"])
			if err != nil {
				continue
			}
			e := model.NewLogEntry(model.SourcePush, ts, env.Meta.Message, rec)
			c.buf.Push(e)
		}
	}
}
