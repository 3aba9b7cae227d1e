package drift

import "fmt"

// Severity of an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps free-form severities onto the three known levels.
// Unknown values read as info.
func ParseSeverity(s string) Severity {
	switch s {
	case "critical", "error", "high":
		return SeverityCritical
	case "warning", "warn", "medium":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Alert is a derived notification about plan execution.
type Alert struct {
	Severity          Severity `json:"severity"`
	Message           string   `json:"message"`
	RecommendedAction string   `json:"recommended_action"`
	Active            bool     `json:"active"`
}

// minPendingHighPriority is the number of pending high-priority tasks that
// triggers an alert.
const minPendingHighPriority = 3

// GenerateAlerts derives alerts from a health snapshot. Each rule fires
// independently; callers decide whether to deduplicate against stored alerts.
func GenerateAlerts(health ExecutionHealth, blocked []BlockedTaskReport) []Alert {
	var alerts []Alert

	if health.PendingHighPriority >= minPendingHighPriority {
		alerts = append(alerts, Alert{
			Severity:          SeverityWarning,
			Message:           fmt.Sprintf("%d high-priority tasks are still pending", health.PendingHighPriority),
			RecommendedAction: "Review task prioritization and allocation",
			Active:            true,
		})
	}

	if len(blocked) > 0 {
		alerts = append(alerts, Alert{
			Severity:          SeverityWarning,
			Message:           fmt.Sprintf("%d tasks are blocked by dependencies", len(blocked)),
			RecommendedAction: "Focus on completing blocking tasks first",
			Active:            true,
		})
	}

	score := fmt.Sprintf("%.1f", health.Score)
	switch {
	case health.Score < atRiskThreshold:
		alerts = append(alerts, Alert{
			Severity:          SeverityCritical,
			Message:           fmt.Sprintf("Execution health is critical: %s%%", score),
			RecommendedAction: "Immediate team review needed to address blockers",
			Active:            true,
		})
	case health.Score < healthyThreshold:
		alerts = append(alerts, Alert{
			Severity:          SeverityWarning,
			Message:           fmt.Sprintf("Execution health is at risk: %s%%", score),
			RecommendedAction: "Review and prioritize pending tasks",
			Active:            true,
		})
	}

	return alerts
}
