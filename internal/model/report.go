package model

import "time"

// IntegrationSection is one optional integration's additive contribution to
// a report. Either Data or Error is set, never both meaningfully.
type IntegrationSection struct {
	Name  string         `json:"name"`
	Data  map[string]any `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
}

// Report is the output of one scheduled run.
type Report struct {
	SiteName            string                `json:"site_name"`
	ControllerType      string                `json:"controller_type"`
	PeriodStart         time.Time             `json:"period_start"`
	PeriodEnd           time.Time             `json:"period_end"`
	GeneratedAt         time.Time             `json:"generated_at"`
	Findings            []Finding             `json:"findings"`
	IntegrationSections []IntegrationSection  `json:"integration_sections"`
}

// SevereCount, MediumCount, LowCount are computed from Findings, never
// stored, so they can never drift out of sync with the finding list.
func (r Report) SevereCount() int { return r.countBySeverity(SeveritySevere) }
func (r Report) MediumCount() int { return r.countBySeverity(SeverityMedium) }
func (r Report) LowCount() int    { return r.countBySeverity(SeverityLow) }

func (r Report) countBySeverity(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// LastEventTime returns the latest LastSeen across all findings, or the
// zero time if there are none.
func (r Report) LastEventTime() time.Time {
	var last time.Time
	for _, f := range r.Findings {
		if f.LastSeen.After(last) {
			last = f.LastSeen
		}
	}
	return last
}

// Valid checks the report-level ordering invariant:
// period_start <= last_event_time(findings) <= period_end <= generated_at.
func (r Report) Valid() bool {
	last := r.LastEventTime()
	if !last.IsZero() {
		if last.Before(r.PeriodStart) || last.After(r.PeriodEnd) {
			return false
		}
	}
	if r.PeriodEnd.After(r.GeneratedAt) {
		return false
	}
	for _, f := range r.Findings {
		if !f.Valid() {
			return false
		}
	}
	return true
}
