package stage

import "strings"

// KPI is a key performance indicator proposed by the marketing or finance stage.
type KPI struct {
	Stage       Name    `json:"stage"`
	Name        string  `json:"name"`
	TargetValue float64 `json:"target_value"`
	Unit        string  `json:"unit"`
}

// AdvisorAlert is an alert the advisor stage raised about the plan.
type AdvisorAlert struct {
	Severity          string `json:"severity"`
	Message           string `json:"message"`
	RecommendedAction string `json:"recommended_action"`
}

// KPIs returns the named KPIs of a result. Entries without a name are skipped.
func KPIs(name Name, r Result) []KPI {
	var kpis []KPI
	for _, item := range r.Output().List("kpis") {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		n, _ := m["name"].(string)
		if strings.TrimSpace(n) == "" {
			continue
		}
		k := KPI{Stage: name, Name: n}
		k.TargetValue, _ = asFloat(m["target_value"])
		k.Unit, _ = m["unit"].(string)
		kpis = append(kpis, k)
	}
	return kpis
}

// AdvisorAlerts returns the alerts of an advisor result with severities
// normalised to lower case. Entries without a message are skipped.
func AdvisorAlerts(r Result) []AdvisorAlert {
	var alerts []AdvisorAlert
	for _, item := range r.Output().List("alerts") {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		msg, _ := m["message"].(string)
		if strings.TrimSpace(msg) == "" {
			continue
		}
		sev, _ := m["severity"].(string)
		sev = strings.ToLower(strings.TrimSpace(sev))
		if sev == "" {
			sev = "info"
		}
		action, _ := m["recommended_action"].(string)
		alerts = append(alerts, AdvisorAlert{Severity: sev, Message: msg, RecommendedAction: action})
	}
	return alerts
}
