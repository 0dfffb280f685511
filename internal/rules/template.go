package rules

import "strings"

// RenderTemplate resolves a "{{placeholder}}" style template against ctx.
// Unresolved placeholders render as the empty string, never an error,
// since rule rendering must stay pure and crash-free. A small hand-rolled
// resolver is used instead of text/template because
// rule templates are flat named-placeholder substitutions with no control
// flow, and must never be able to panic on an unexpected context shape.
func RenderTemplate(tmpl string, ctx map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(tmpl) {
		start := strings.Index(tmpl[i:], "{{")
		if start < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		start += i
		b.WriteString(tmpl[i:start])
		end := strings.Index(tmpl[start:], "}}")
		if end < 0 {
			b.WriteString(tmpl[start:])
			break
		}
		end += start
		key := strings.TrimSpace(tmpl[start+2 : end])
		b.WriteString(ctx[key]) // missing key -> zero value "" by map semantics
		i = end + 2
	}
	return b.String()
}
