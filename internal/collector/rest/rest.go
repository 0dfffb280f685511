// Package rest implements the REST log source: historical events and
// alarms pulled over the controller's request/response API, with pagination
// truncation detection, bounded retry with jittered backoff on transient
// failures, and a single re-authentication attempt on 401.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/trekops/unifi-reporter/internal/collector"
	"github.com/trekops/unifi-reporter/internal/model"
)

var errAuth = fmt.Errorf("rest: %w", model.ErrAuthentication)

// serverPageLimit is the known provider cap on events/alarms returned per
// request.
const serverPageLimit = 3000

// Config configures the REST collector.
type Config struct {
	BaseURL      string
	Site         string
	Username     string
	Password     string
	HTTPClient   *http.Client
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	ArchivedAlarms bool
}

func (c *Config) setDefaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 250 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Site == "" {
		c.Site = "default"
	}
}

// envelope mirrors the controller's {meta:{count?}, data:[...]} wire shape.
type envelope struct {
	Meta struct {
		Count *int `json:"count"`
	} `json:"meta"`
	Data []map[string]any `json:"data"`
}

type Collector struct {
	cfg     Config
	logger  *slog.Logger
	session *session
}

func New(cfg Config, logger *slog.Logger) *Collector {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		cfg:     cfg,
		logger:  logger,
		session: newSession(cfg.HTTPClient, cfg.BaseURL, cfg.Username, cfg.Password),
	}
}

func (c *Collector) Name() string { return "rest" }

// CookieHeader exposes the current session's cookie, for reuse by the push
// collector, which authenticates by riding the REST session rather than
// logging in a second time.
func (c *Collector) CookieHeader() string {
	jar := c.cfg.HTTPClient.Jar
	if jar == nil {
		return ""
	}
	u, err := parseURL(c.cfg.BaseURL)
	if err != nil {
		return ""
	}
	cookies := jar.Cookies(u)
	if len(cookies) == 0 {
		return ""
	}
	out := ""
	for i, ck := range cookies {
		if i > 0 {
			out += "; "
		}
		out += ck.Name + "=" + ck.Value
	}
	return out
}

func (c *Collector) Collect(ctx context.Context, window collector.Window) ([]model.LogEntry, error) {
	if !c.session.authed {
		if err := c.session.authenticate(ctx); err != nil {
			return nil, err
		}
	}

	events, err := c.fetchPage(ctx, c.session.eventsPath(c.cfg.Site))
	if err != nil {
		return nil, fmt.Errorf("%w: events: %v", model.ErrSourceUnavailable, err)
	}
	alarmsPath := c.session.alarmsPath(c.cfg.Site)
	if c.cfg.ArchivedAlarms {
		alarmsPath += "?archived=true"
	}
	alarms, err := c.fetchPage(ctx, alarmsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: alarms: %v", model.ErrSourceUnavailable, err)
	}

	entries := make([]model.LogEntry, 0, len(events)+len(alarms))
	for _, rec := range append(events, alarms...) {
		ts, err := model.ParseTimestamp(rec["time"])
		if err != nil {
			continue
		}
		if ts.Before(window.Start) || ts.After(window.End) {
			continue
		}
		eventType, _ := rec["key"].(string)
		entries = append(entries, model.NewLogEntry(model.SourceREST, ts, eventType, rec))
	}
	return entries, nil
}

// fetchPage issues one request with bounded retry/backoff and a single
// re-auth-and-retry on 401, then detects pagination truncation by
// comparing the returned count against meta.count.
func (c *Collector) fetchPage(ctx context.Context, path string) ([]map[string]any, error) {
	var lastErr error
	reauthed := false
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if !sleepWithBackoff(ctx, c.cfg.BaseDelay, c.cfg.MaxDelay, attempt) {
				return nil, ctx.Err()
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return nil, err
		}
		c.session.applyAuthHeadersLocked(req)
		resp, err := c.cfg.HTTPClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusUnauthorized && !reauthed {
			resp.Body.Close()
			reauthed = true
			if err := c.session.authenticate(ctx); err != nil {
				return nil, err
			}
			attempt-- // retry the same attempt budget with fresh auth
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if env.Meta.Count != nil && *env.Meta.Count > len(env.Data) {
			c.logger.Warn("rest collector detected pagination truncation",
				"path", path, "server_count", *env.Meta.Count, "received", len(env.Data),
				"delta", *env.Meta.Count-len(env.Data))
		}
		if len(env.Data) > serverPageLimit {
			env.Data = env.Data[:serverPageLimit]
		}
		return env.Data, nil
	}
	if lastErr == nil {
		lastErr = errors.New("exhausted retry attempts")
	}
	return nil, lastErr
}

func sleepWithBackoff(ctx context.Context, base, max time.Duration, attempt int) bool {
	delay := base * time.Duration(1<<uint(attempt-1))
	if delay > max {
		delay = max
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	timer := time.NewTimer(delay + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
