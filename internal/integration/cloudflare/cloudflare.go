// Package cloudflare implements the optional Cloudflare firewall-events
// integration: a thin typed client over net/http that issues a request,
// decodes into a typed result, and translates a non-2xx response into a
// wrapped error.
package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/trekops/unifi-reporter/internal/collector"
)

const name = "cloudflare"

// Config holds the per-run Cloudflare API credentials. The integration is
// configured only when both Token and ZoneID are non-empty.
type Config struct {
	Token      string
	ZoneID     string
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.cloudflare.com/client/v4"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Integration fetches firewall event counts for the configured zone over
// the run window, satisfying integration.Integration.
type Integration struct {
	cfg Config
}

func New(cfg Config) *Integration {
	cfg.setDefaults()
	return &Integration{cfg: cfg}
}

func (i *Integration) Name() string { return name }

func (i *Integration) IsConfigured() bool {
	return i.cfg.Token != "" && i.cfg.ZoneID != ""
}

func (i *Integration) ValidateConfig() string {
	if i.cfg.Token != "" && i.cfg.ZoneID == "" {
		return "cloudflare token set without a zone id; integration will be skipped"
	}
	if i.cfg.Token == "" && i.cfg.ZoneID != "" {
		return "cloudflare zone id set without a token; integration will be skipped"
	}
	return ""
}

type firewallEventsResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Result []struct {
		Action string `json:"action"`
		Count  int    `json:"count"`
	} `json:"result"`
}

// Fetch retrieves firewall event counts, bucketed by action, for the run
// window.
func (i *Integration) Fetch(ctx context.Context, window collector.Window) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/zones/%s/firewall/events", i.cfg.BaseURL, url.PathEscape(i.cfg.ZoneID))
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid cloudflare endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	q.Set("since", strconv.FormatInt(window.Start.Unix(), 10))
	q.Set("until", strconv.FormatInt(window.End.Unix(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+i.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := i.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudflare request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cloudflare returned status %d", resp.StatusCode)
	}

	var parsed firewallEventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding cloudflare response: %w", err)
	}
	if !parsed.Success {
		msg := "unknown error"
		if len(parsed.Errors) > 0 {
			msg = parsed.Errors[0].Message
		}
		return nil, fmt.Errorf("cloudflare api error: %s", msg)
	}

	byAction := make(map[string]any, len(parsed.Result))
	total := 0
	for _, r := range parsed.Result {
		byAction[r.Action] = r.Count
		total += r.Count
	}
	return map[string]any{
		"total_events": total,
		"by_action":    byAction,
	}, nil
}
