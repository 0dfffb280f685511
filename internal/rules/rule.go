package rules

import (
	"regexp"

	"github.com/trekops/unifi-reporter/internal/model"
)

// Rule is an immutable declarative mapping from an event shape to a finding
// template.
type Rule struct {
	Name                string
	EventTypes          map[string]bool
	Pattern             *regexp.Regexp // optional; matched against Message
	Category            model.Category
	Severity            model.Severity
	TitleTemplate       string
	DescriptionTemplate string
	RemediationTemplate string // optional
}

// Matches reports whether entry's event type is covered and, if a pattern
// is set, whether the message matches it.
func (r Rule) Matches(entry model.LogEntry) bool {
	if !r.EventTypes[entry.EventType] {
		return false
	}
	if r.Pattern != nil {
		return r.Pattern.MatchString(entry.Message)
	}
	return true
}

// Render produces the finding fields for one matching entry. Template keys
// unresolved in ctx render as empty strings, never errors.
func (r Rule) Render(entry model.LogEntry) (title, description, remediation string) {
	ctx := BuildContext(entry)
	title = RenderTemplate(r.TitleTemplate, ctx)
	description = RenderTemplate(r.DescriptionTemplate, ctx)
	if r.RemediationTemplate != "" {
		remediation = RenderTemplate(r.RemediationTemplate, ctx)
	}
	return title, description, remediation
}
