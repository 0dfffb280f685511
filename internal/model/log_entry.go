package model

import (
	"time"

	"github.com/google/uuid"
)

// LogEntry is one normalized event from any collector.
type LogEntry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Source     Source         `json:"source"`
	EventType  string         `json:"event_type"`
	DeviceMAC  MAC            `json:"device_mac,omitempty"`
	DeviceName string         `json:"device_name,omitempty"`
	Message    string         `json:"message"`
	Raw        map[string]any `json:"raw"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewLogEntry applies the defaulting rules common to every collector: an
// opaque ID is generated when absent, event_type defaults to UNKNOWN.
func NewLogEntry(source Source, timestamp time.Time, eventType string, raw map[string]any) LogEntry {
	if eventType == "" {
		eventType = "UNKNOWN"
	}
	if raw == nil {
		raw = map[string]any{}
	}
	mac := FirstDeviceIdentity(raw)
	return LogEntry{
		ID:         uuid.NewString(),
		Timestamp:  NormalizeTimestamp(timestamp),
		Source:     source,
		EventType:  eventType,
		DeviceMAC:  mac,
		DeviceName: FirstDeviceName(raw, mac),
		Raw:        raw,
		Metadata:   map[string]any{},
	}
}

// DedupeKey is the cross-source identity used by the orchestrator: source
// systems do not share event IDs, so entries are deduplicated by the tuple
// (timestamp, message, device_mac) instead.
func (e LogEntry) DedupeKey() string {
	return e.Timestamp.Format(time.RFC3339) + "|" + e.Message + "|" + string(e.DeviceMAC)
}

// Valid reports whether the entry satisfies the invariants every collector
// must uphold: a UTC-aware timestamp and a non-empty event type.
func (e LogEntry) Valid() bool {
	return !e.Timestamp.IsZero() && e.EventType != ""
}
