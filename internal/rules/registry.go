// Package rules implements the rule registry and dispatch engine: a flat
// event-type-keyed index with registration-order dispatch, optional
// regex-pattern disambiguation, pure named-placeholder template rendering,
// and post-pass collapsing of findings sharing (rule_name, affected_entity).
//
// The Registry is a flat map-keyed index of declarative rule records, and
// template rendering resolves named placeholders against a context with
// empty-string fallback for anything missing.
package rules

import (
	"log/slog"
	"sync"

	"github.com/trekops/unifi-reporter/internal/model"
)

// Registry indexes rules by event type for O(1) dispatch, preserving
// registration order among rules that share an event type.
type Registry struct {
	mu      sync.RWMutex
	byEvent map[string][]Rule
}

func NewRegistry() *Registry {
	return &Registry{byEvent: make(map[string][]Rule)}
}

// Register adds a rule under every event type it declares, in call order.
func (r *Registry) Register(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for eventType := range rule.EventTypes {
		r.byEvent[eventType] = append(r.byEvent[eventType], rule)
	}
}

// rulesFor returns the registered rules for an event type, in registration
// order.
func (r *Registry) rulesFor(eventType string) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byEvent[eventType]
}

// collapseKey identifies the (rule, affected entity) pair findings collapse
// onto.
type collapseKey struct {
	ruleName string
	entity   string
}

// Engine evaluates a Registry over a batch of entries and collapses
// per-event findings sharing (rule_name, affected_entity).
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

func NewEngine(registry *Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, logger: logger}
}

// Evaluate runs every applicable rule over each entry, with per-event
// failure isolation (a rule that panics while rendering is logged and
// skipped, never aborting the engine), then collapses occurrences of the
// same (rule_name, affected_entity) pair. Collapsing order follows first
// occurrence, so the returned slice is deterministic for a given input
// order.
func (e *Engine) Evaluate(entries []model.LogEntry) []model.Finding {
	collapsed := make(map[collapseKey]*model.Finding)
	var order []collapseKey

	for _, entry := range entries {
		for _, rule := range e.registry.rulesFor(entry.EventType) {
			if !rule.Matches(entry) {
				continue
			}
			e.evaluateOne(rule, entry, collapsed, &order)
		}
	}

	findings := make([]model.Finding, 0, len(order))
	for _, k := range order {
		findings = append(findings, *collapsed[k])
	}
	return findings
}

func (e *Engine) evaluateOne(rule Rule, entry model.LogEntry, collapsed map[collapseKey]*model.Finding, order *[]collapseKey) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("rule evaluation panicked, skipping event",
				"rule", rule.Name, "event_id", entry.ID, "event_type", entry.EventType, "panic", r)
		}
	}()

	title, description, remediation := rule.Render(entry)

	entity := string(entry.DeviceMAC)
	if entity == "" {
		entity = entry.DeviceName
	}
	k := collapseKey{ruleName: rule.Name, entity: entity}

	if existing, ok := collapsed[k]; ok {
		existing.Merge(entry)
		return
	}

	finding := model.NewFinding(rule.Name+":"+entity, rule.Name, rule.Category, rule.Severity,
		title, description, remediation, entry)
	collapsed[k] = &finding
	*order = append(*order, k)
}
