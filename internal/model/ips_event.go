package model

import "time"

// cybersecureSignatureRangeStart/End bound the reserved Suricata signature
// ID range that Ubiquiti's "Cybersecure" threat feed publishes into; events
// in this range are flagged for the threat-summary aggregator.
const (
	cybersecureSignatureRangeStart = 2_800_000
	cybersecureSignatureRangeEnd   = 2_899_999
)

// IPSEventAction is the action the controller took on a matched signature.
type IPSEventAction string

const (
	IPSActionBlocked  IPSEventAction = "blocked"
	IPSActionDetected IPSEventAction = "detected"
)

// IPSEvent is a specialized view over a raw IPS/IDS alarm payload.
type IPSEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	SignatureID int64          `json:"signature_id"`
	Category    string         `json:"category"`
	Action      IPSEventAction `json:"action"`
	SourceIP    string         `json:"source_ip"`
	DestIP      string         `json:"dest_ip"`
}

// IsCybersecure reports whether the matched signature ID falls in the
// reserved Cybersecure range.
func (e IPSEvent) IsCybersecure() bool {
	return e.SignatureID >= cybersecureSignatureRangeStart && e.SignatureID <= cybersecureSignatureRangeEnd
}

// ExtractIPSEvent builds an IPSEvent from a LogEntry's raw IPS/IDS alarm
// payload. Returns ok=false if the entry doesn't carry a signature ID,
// since not every LogEntry is an IPS alarm.
func ExtractIPSEvent(entry LogEntry) (IPSEvent, bool) {
	sigRaw, ok := entry.Raw["signature"]
	if !ok {
		sigRaw, ok = entry.Raw["signature_id"]
	}
	if !ok {
		return IPSEvent{}, false
	}
	var sigID int64
	switch v := sigRaw.(type) {
	case float64:
		sigID = int64(v)
	case int64:
		sigID = v
	case int:
		sigID = int64(v)
	case string:
		return IPSEvent{}, false
	default:
		return IPSEvent{}, false
	}
	category, _ := entry.Raw["category"].(string)
	action, _ := entry.Raw["action"].(string)
	srcIP, _ := entry.Raw["src_ip"].(string)
	dstIP, _ := entry.Raw["dst_ip"].(string)
	a := IPSActionDetected
	if action == string(IPSActionBlocked) {
		a = IPSActionBlocked
	}
	return IPSEvent{
		Timestamp:   entry.Timestamp,
		SignatureID: sigID,
		Category:    category,
		Action:      a,
		SourceIP:    srcIP,
		DestIP:      dstIP,
	}, true
}

// DeviceStats is a specialized view over a raw device-state payload.
type DeviceStats struct {
	DeviceMAC   MAC       `json:"device_mac"`
	DeviceName  string    `json:"device_name"`
	Timestamp   time.Time `json:"timestamp"`
	TempCelsius float64   `json:"temp_celsius,omitempty"`
	UptimeSec   int64     `json:"uptime_sec"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemPercent  float64   `json:"mem_percent"`
	PoEEnabled  bool      `json:"poe_enabled"`
	PoEPowerW   float64   `json:"poe_power_w,omitempty"`
}
