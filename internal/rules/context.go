package rules

import (
	"fmt"

	"github.com/trekops/unifi-reporter/internal/model"
)

// bandLabels maps a UniFi radio band code to its human label.
var bandLabels = map[string]string{
	"ng": "2.4GHz",
	"na": "5GHz",
	"6e": "6GHz",
}

// BandLabel translates a radio band code to a human-readable label; unknown
// codes pass through unchanged.
func BandLabel(code string) string {
	if label, ok := bandLabels[code]; ok {
		return label
	}
	return code
}

// RSSIQuality buckets an RSSI value (dBm) into a human quality label.
func RSSIQuality(rssi float64) string {
	switch {
	case rssi >= -50:
		return "Excellent"
	case rssi >= -60:
		return "Good"
	case rssi >= -70:
		return "Fair"
	case rssi >= -80:
		return "Poor"
	default:
		return "Very Poor"
	}
}

// BuildContext assembles the named-placeholder context a rule's templates
// render against: the raw record's string fields plus derived fields
// (band label, RSSI quality, resolved device name). Missing keys simply
// aren't present in the map; template rendering treats that as an empty
// string rather than an error.
func BuildContext(entry model.LogEntry) map[string]string {
	ctx := map[string]string{
		"event_type":  entry.EventType,
		"message":     entry.Message,
		"device_mac":  string(entry.DeviceMAC),
		"device_name": entry.DeviceName,
	}
	if ctx["device_name"] == "" {
		ctx["device_name"] = model.FirstDeviceName(entry.Raw, entry.DeviceMAC)
	}
	for k, v := range entry.Raw {
		switch val := v.(type) {
		case string:
			ctx[k] = val
		case float64:
			ctx[k] = fmt.Sprintf("%v", val)
		case int, int64:
			ctx[k] = fmt.Sprintf("%v", val)
		case bool:
			ctx[k] = fmt.Sprintf("%v", val)
		}
	}
	if band, ok := ctx["radio"]; ok {
		ctx["radio_label"] = BandLabel(band)
	}
	if rssiStr, ok := entry.Raw["rssi"]; ok {
		if rssi, ok := toFloat(rssiStr); ok {
			ctx["rssi_quality"] = RSSIQuality(rssi)
		}
	}
	return ctx
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
