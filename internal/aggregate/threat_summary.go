package aggregate

import (
	"fmt"
	"sort"

	"github.com/trekops/unifi-reporter/internal/model"
)

// DefaultTopN bounds how many source IPs the summary finding enumerates.
const DefaultTopN = 10

// ThreatSummaryAggregator groups IPS events by source IP and emits a
// summary finding enumerating the top N source IPs, distinguishing
// blocked vs detected-only and flagging Cybersecure-range signatures.
type ThreatSummaryAggregator struct {
	TopN int
}

func NewThreatSummaryAggregator(topN int) *ThreatSummaryAggregator {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &ThreatSummaryAggregator{TopN: topN}
}

// categoryCount tracks blocked/detected occurrences for one signature
// category, either within one source IP or across the whole run.
type categoryCount struct {
	blocked  int
	detected int
}

func (c *categoryCount) record(action model.IPSEventAction) {
	if action == model.IPSActionBlocked {
		c.blocked++
	} else {
		c.detected++
	}
}

type ipStats struct {
	ip           string
	blocked      int
	detected     int
	cybersecure  bool
	entries      []model.LogEntry
	categories   map[string]*categoryCount
	categoryKeys []string
}

func (s *ipStats) categoryCount(category string) *categoryCount {
	c, ok := s.categories[category]
	if !ok {
		c = &categoryCount{}
		s.categories[category] = c
		s.categoryKeys = append(s.categoryKeys, category)
	}
	return c
}

// Run groups IPS events by source IP and, within each IP, by signature
// category, and emits:
//   - one SEVERE per-event finding for each individual Cybersecure-range
//     blocked event (handled by the rule engine's "ips-alert" rule; this
//     aggregator only adds the summary), and
//   - one summary finding enumerating the top N source IPs, each broken
//     down by category, plus a run-wide by-category rollup.
func (a *ThreatSummaryAggregator) Run(entries []model.LogEntry) []model.Finding {
	stats := make(map[string]*ipStats)
	var order []string
	byCategory := make(map[string]*categoryCount)
	var categoryOrder []string

	for _, e := range entries {
		ips, ok := model.ExtractIPSEvent(e)
		if !ok || ips.SourceIP == "" {
			continue
		}
		s, exists := stats[ips.SourceIP]
		if !exists {
			s = &ipStats{ip: ips.SourceIP, categories: make(map[string]*categoryCount)}
			stats[ips.SourceIP] = s
			order = append(order, ips.SourceIP)
		}
		if ips.Action == model.IPSActionBlocked {
			s.blocked++
		} else {
			s.detected++
		}
		if ips.IsCybersecure() {
			s.cybersecure = true
		}
		s.entries = append(s.entries, e)

		category := ips.Category
		if category == "" {
			category = "uncategorized"
		}
		s.categoryCount(category).record(ips.Action)
		if _, ok := byCategory[category]; !ok {
			byCategory[category] = &categoryCount{}
			categoryOrder = append(categoryOrder, category)
		}
		byCategory[category].record(ips.Action)
	}
	if len(order) == 0 {
		return nil
	}

	sort.SliceStable(order, func(i, j int) bool {
		ti := stats[order[i]].blocked + stats[order[i]].detected
		tj := stats[order[j]].blocked + stats[order[j]].detected
		return ti > tj
	})
	if len(order) > a.TopN {
		order = order[:a.TopN]
	}
	sort.SliceStable(categoryOrder, func(i, j int) bool {
		ci, cj := byCategory[categoryOrder[i]], byCategory[categoryOrder[j]]
		return ci.blocked+ci.detected > cj.blocked+cj.detected
	})

	description := "Top threat source IPs this run:\n"
	anyCybersecure := false
	var firstEntry model.LogEntry
	for i, ip := range order {
		s := stats[ip]
		if i == 0 {
			firstEntry = s.entries[0]
		}
		cyberNote := ""
		if s.cybersecure {
			anyCybersecure = true
			cyberNote = " [Cybersecure]"
		}
		description += fmt.Sprintf("- %s: %d blocked, %d detected-only%s\n", ip, s.blocked, s.detected, cyberNote)
		sort.SliceStable(s.categoryKeys, func(i, j int) bool {
			ci, cj := s.categories[s.categoryKeys[i]], s.categories[s.categoryKeys[j]]
			return ci.blocked+ci.detected > cj.blocked+cj.detected
		})
		for _, category := range s.categoryKeys {
			c := s.categories[category]
			description += fmt.Sprintf("    %s: %d blocked, %d detected-only\n", category, c.blocked, c.detected)
		}
	}

	description += "By signature category across all source IPs:\n"
	for _, category := range categoryOrder {
		c := byCategory[category]
		description += fmt.Sprintf("- %s: %d blocked, %d detected-only\n", category, c.blocked, c.detected)
	}

	finding := model.NewFinding("threat-summary", "threat-summary", model.CategorySecurity, model.SeverityMedium,
		fmt.Sprintf("Threat summary: %d source IPs observed", len(stats)), description, "", firstEntry)
	for _, ip := range order {
		for _, e := range stats[ip].entries {
			finding.Merge(e)
		}
		finding.AffectedEntities[ip] = true
	}
	if anyCybersecure {
		finding.Severity = model.SeveritySevere
		finding.Remediation = "Review Cybersecure-flagged source IPs and confirm the IPS policy is set to block, not just detect, for those signatures."
	}
	return []model.Finding{finding}
}
