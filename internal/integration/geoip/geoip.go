// Package geoip implements the optional source-IP geolocation enrichment
// integration, backed by a local MaxMind-format database opened through
// github.com/oschwald/maxminddb-golang: open the lookup database once, then
// query it per observed source IP.
package geoip

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"

	"github.com/trekops/unifi-reporter/internal/collector"
)

const name = "geoip"

// Config points at the local database file and the source IPs to resolve.
// SourceIPs supplies the addresses to look up each time Fetch runs; pair it
// with a SourceIPTracker fed from collection output, since geoip enrichment
// is derived from collected events rather than an independent external
// query.
type Config struct {
	DatabasePath string
	SourceIPs    func() []string
}

// SourceIPTracker holds the most recently observed set of IPS source IPs,
// recorded by the caller after each collection pass and read back by
// Config.SourceIPs on the following Fetch. Collection and integration
// fetches run concurrently within one invocation, so a tracker fed from the
// previous pass is used rather than this run's still-in-flight entries.
type SourceIPTracker struct {
	mu  sync.Mutex
	ips []string
}

// Record replaces the tracked set of source IPs.
func (t *SourceIPTracker) Record(ips []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ips = append([]string(nil), ips...)
}

// Provide returns the currently tracked source IPs, suitable for use as
// Config.SourceIPs.
func (t *SourceIPTracker) Provide() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ips...)
}

type record struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

// Integration resolves source IPs observed during a run to country/city
// using a local MaxMind-format database. The database handle is opened
// lazily on first Fetch and kept open for the process lifetime.
type Integration struct {
	cfg Config

	mu sync.Mutex
	db *maxminddb.Reader
}

func New(cfg Config) *Integration {
	return &Integration{cfg: cfg}
}

func (i *Integration) Name() string { return name }

func (i *Integration) IsConfigured() bool {
	return i.cfg.DatabasePath != "" && i.cfg.SourceIPs != nil
}

func (i *Integration) ValidateConfig() string {
	if i.cfg.DatabasePath == "" {
		return ""
	}
	if _, err := maxminddb.Open(i.cfg.DatabasePath); err != nil {
		return fmt.Sprintf("geoip database at %s could not be opened: %v", i.cfg.DatabasePath, err)
	}
	return ""
}

func (i *Integration) openLocked() (*maxminddb.Reader, error) {
	if i.db != nil {
		return i.db, nil
	}
	db, err := maxminddb.Open(i.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening geoip database: %w", err)
	}
	i.db = db
	return db, nil
}

// Fetch resolves every distinct source IP supplied by Config.SourceIPs to a
// country/city record, skipping malformed or unresolvable addresses.
func (i *Integration) Fetch(ctx context.Context, window collector.Window) (map[string]any, error) {
	i.mu.Lock()
	db, err := i.openLocked()
	i.mu.Unlock()
	if err != nil {
		return nil, err
	}

	byIP := make(map[string]any)
	for _, raw := range i.cfg.SourceIPs() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		ip := net.ParseIP(raw)
		if ip == nil {
			continue
		}
		var rec record
		if err := db.Lookup(ip, &rec); err != nil {
			continue
		}
		if rec.Country.ISOCode == "" {
			continue
		}
		byIP[raw] = map[string]any{
			"country": rec.Country.ISOCode,
			"city":    rec.City.Names["en"],
		}
	}
	return map[string]any{"resolved": byIP}, nil
}
