// Package aggregate implements the post-pass detectors: the
// roaming-flapping detector and the threat-summary aggregator. Both run
// after per-event rule evaluation and are order-independent with respect
// to each other, each consuming the full batch of collected entries and
// emitting additional derived findings.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/trekops/unifi-reporter/internal/model"
)

// DefaultFlappingThreshold is the occurrence count at which a client's
// roaming events are flagged as flapping.
const DefaultFlappingThreshold = 5

// FlappingDetector groups roaming events by client MAC and emits one
// MEDIUM finding per client that roamed at least Threshold times in the
// window.
type FlappingDetector struct {
	Threshold  int
	EventTypes map[string]bool
}

func NewFlappingDetector(threshold int) *FlappingDetector {
	if threshold <= 0 {
		threshold = DefaultFlappingThreshold
	}
	return &FlappingDetector{
		Threshold:  threshold,
		EventTypes: map[string]bool{"EVT_WU_Roam": true, "EVT_WU_Roam_Radio": true},
	}
}

// Run groups entries by client MAC and emits a flapping finding for every
// client at or above the threshold.
func (d *FlappingDetector) Run(entries []model.LogEntry) []model.Finding {
	type clientGroup struct {
		mac     model.MAC
		aps     map[string]bool
		apOrder []string
		entries []model.LogEntry
	}
	groups := make(map[model.MAC]*clientGroup)
	var order []model.MAC

	for _, e := range entries {
		if !d.EventTypes[e.EventType] || e.DeviceMAC == "" {
			continue
		}
		g, ok := groups[e.DeviceMAC]
		if !ok {
			g = &clientGroup{mac: e.DeviceMAC, aps: map[string]bool{}}
			groups[e.DeviceMAC] = g
			order = append(order, e.DeviceMAC)
		}
		g.entries = append(g.entries, e)
		for _, key := range []string{"ap_from", "ap_to", "ap_name"} {
			if v, ok := e.Raw[key].(string); ok && v != "" && !g.aps[v] {
				g.aps[v] = true
				g.apOrder = append(g.apOrder, v)
			}
		}
	}

	var findings []model.Finding
	for _, mac := range order {
		g := groups[mac]
		if len(g.entries) < d.Threshold {
			continue
		}
		sort.Strings(g.apOrder)
		finding := model.NewFinding(
			"flapping:"+string(mac), "roaming-flapping",
			model.CategoryWireless, model.SeverityMedium,
			fmt.Sprintf("Client %s is flapping between access points", mac),
			fmt.Sprintf("Client %s roamed %d times across access points %v in this run.", mac, len(g.entries), g.apOrder),
			"", g.entries[0],
		)
		for _, e := range g.entries[1:] {
			finding.Merge(e)
		}
		findings = append(findings, finding)
	}
	return findings
}
