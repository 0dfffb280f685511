package rules

import (
	"regexp"

	"github.com/trekops/unifi-reporter/internal/model"
)

// eventTypes is a tiny constructor helper for the common single-event-type
// case.
func eventTypes(types ...string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

// DefaultRegistry builds the registry of built-in rules covering the
// controller's wireless, connectivity, and IPS wire events.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, rule := range builtinRules() {
		r.Register(rule)
	}
	return r
}

func builtinRules() []Rule {
	return []Rule{
		{
			Name:                "client-roamed",
			EventTypes:          eventTypes("EVT_WU_Roam"),
			Category:            model.CategoryWireless,
			Severity:            model.SeverityLow,
			TitleTemplate:       "Client roamed from {{ap_from}} to {{ap_to}}",
			DescriptionTemplate: "Client {{device_mac}} roamed from {{ap_from}} to {{ap_to}} on {{radio_label}} ({{rssi_quality}} signal).",
		},
		{
			Name:                "client-roamed-radio",
			EventTypes:          eventTypes("EVT_WU_Roam_Radio"),
			Category:            model.CategoryWireless,
			Severity:            model.SeverityLow,
			TitleTemplate:       "Client changed radio band at {{ap_name}}",
			DescriptionTemplate: "Client {{device_mac}} switched radio bands at {{ap_name}}.",
		},
		{
			Name:                "client-disconnected",
			EventTypes:          eventTypes("EVT_WU_Disconnected"),
			Category:            model.CategoryConnectivity,
			Severity:            model.SeverityLow,
			TitleTemplate:       "Client disconnected from {{ap_name}}",
			DescriptionTemplate: "Client {{device_mac}} disconnected from {{ap_name}}: {{message}}",
		},
		{
			Name:                "wireless-interference",
			EventTypes:          eventTypes("EVT_AP_Interference_Detected"),
			Category:            model.CategoryWireless,
			Severity:            model.SeverityMedium,
			TitleTemplate:       "Interference detected on {{device_name}}",
			DescriptionTemplate: "Access point {{device_name}} reported interference on {{radio_label}}: {{message}}",
			RemediationTemplate: "Review channel plan for {{radio_label}} and consider reassigning {{device_name}} to a clearer channel.",
		},
		{
			// Specialized pattern-matched rule coexisting with the generic
			// interference rule above on the same event type: radar
			// detection is always actionable.
			Name:                "radar-detected",
			EventTypes:          eventTypes("EVT_AP_Interference_Detected"),
			Pattern:             regexp.MustCompile(`(?i)radar.*(detected|hit)`),
			Category:            model.CategoryWireless,
			Severity:            model.SeveritySevere,
			TitleTemplate:       "Radar event forced a DFS channel change on {{device_name}}",
			DescriptionTemplate: "Access point {{device_name}} detected radar on {{radio_label}} and vacated the channel per DFS rules.",
			RemediationTemplate: "No action required; the radio will select a new DFS channel automatically. If this recurs frequently, consider a fixed non-DFS channel for {{device_name}}.",
		},
		{
			Name:                "device-lost-contact",
			EventTypes:          eventTypes("EVT_AP_Lost_Contact", "EVT_SW_Lost_Contact", "EVT_GW_Lost_Contact"),
			Category:            model.CategorySystem,
			Severity:            model.SeveritySevere,
			TitleTemplate:       "{{device_name}} lost contact with the controller",
			DescriptionTemplate: "{{device_name}} ({{device_mac}}) stopped reporting to the controller.",
			RemediationTemplate: "Verify power and upstream network connectivity for {{device_name}}; check for a firmware crash loop.",
		},
		{
			Name:                "ips-alert",
			EventTypes:          eventTypes("EVT_IPS_IpsAlert"),
			Category:            model.CategorySecurity,
			Severity:            model.SeveritySevere,
			TitleTemplate:       "Intrusion signature matched from {{src_ip}}",
			DescriptionTemplate: "Signature {{signature}} ({{category}}) matched traffic from {{src_ip}}; action={{action}}.",
			RemediationTemplate: "Review the source IP {{src_ip}} and confirm the firewall/IPS policy blocked the matching traffic as expected.",
		},
	}
}
