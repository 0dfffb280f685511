package model

import "strings"

// MAC is a hardware address normalized to lowercase colon-separated form
// ("aa:bb:cc:dd:ee:ff"). The zero value is the empty string, meaning absent.
type MAC string

// NormalizeMAC lowercases and colon-separates a MAC address given in any of
// the common source forms (colon, dash, or bare hex). Returns "" for blank
// input; never errors, since a malformed MAC is still preserved verbatim
// (lowercased) for rule matching rather than dropped.
func NormalizeMAC(raw string) MAC {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = strings.ToLower(raw)
	if strings.Contains(raw, "-") {
		// dash form, e.g. "aa-bb-cc-dd-ee-ff"; anything else is kept as-is
		groups := strings.Split(raw, "-")
		if len(groups) != 6 {
			return MAC(raw)
		}
		for _, g := range groups {
			if len(g) != 2 || strings.Trim(g, "0123456789abcdef") != "" {
				return MAC(raw)
			}
		}
		return MAC(strings.Join(groups, ":"))
	}
	if strings.Contains(raw, ":") {
		return MAC(raw)
	}
	// bare hex, e.g. "aabbccddeeff"
	hex := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') {
			return r
		}
		return -1
	}, raw)
	if len(hex) != 12 {
		return MAC(raw)
	}
	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hex[i : i+2])
	}
	return MAC(b.String())
}

// FirstDeviceIdentity resolves device identity preferring, in order,
// ap_mac | sw_mac | gw_mac | mac from the raw record map.
func FirstDeviceIdentity(raw map[string]any) MAC {
	for _, key := range []string{"ap_mac", "sw_mac", "gw_mac", "mac"} {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return NormalizeMAC(s)
			}
		}
	}
	return ""
}

// FirstDeviceName resolves a human-readable device name preferring, in
// order, ap_name | sw_name | gw_name | hostname, falling back to the MAC.
func FirstDeviceName(raw map[string]any, fallbackMAC MAC) string {
	for _, key := range []string{"ap_name", "sw_name", "gw_name", "hostname"} {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return string(fallbackMAC)
}
