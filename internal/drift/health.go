package drift

import (
	"math"

	"startupops/internal/taskgraph"
)

// HealthStatus classifies an execution health score.
type HealthStatus string

const (
	Healthy  HealthStatus = "healthy"
	AtRisk   HealthStatus = "at_risk"
	Critical HealthStatus = "critical"
)

const (
	healthyThreshold = 70
	atRiskThreshold  = 40

	completionWeight = 0.6
	progressWeight   = 0.3
	blockWeight      = 0.1

	// Priority at or above which a pending task counts as high priority.
	highPriority = 4
)

// ExecutionHealth is derived from a task snapshot and never stored as the
// source of truth.
type ExecutionHealth struct {
	Score               float64      `json:"score"`
	Status              HealthStatus `json:"status"`
	TotalCount          int          `json:"total_count"`
	CompletedCount      int          `json:"completed_count"`
	InProgressCount     int          `json:"in_progress_count"`
	BlockedCount        int          `json:"blocked_count"`
	PendingHighPriority int          `json:"pending_high_priority"`
}

// BlockedTaskReport names a pending task and the dependencies holding it up.
type BlockedTaskReport struct {
	TaskID    string   `json:"task_id"`
	Title     string   `json:"title"`
	BlockedBy []string `json:"blocked_by"`
}

// Analyze computes the execution health of a task snapshot and reports the
// blocked tasks in input order. A task is blocked when it is pending and one
// of its known dependencies is not completed.
func Analyze(tasks []taskgraph.Task) (ExecutionHealth, []BlockedTaskReport) {
	byID := taskgraph.Index(tasks)

	var health ExecutionHealth
	var blocked []BlockedTaskReport
	health.TotalCount = len(tasks)
	for _, t := range tasks {
		switch t.Status {
		case taskgraph.Completed:
			health.CompletedCount++
		case taskgraph.InProgress:
			health.InProgressCount++
		case taskgraph.Pending:
			if t.Priority >= highPriority {
				health.PendingHighPriority++
			}
			var by []string
			for _, dep := range t.Dependencies {
				d, ok := byID[dep]
				if ok && d.Status != taskgraph.Completed {
					by = append(by, dep)
				}
			}
			if len(by) > 0 {
				blocked = append(blocked, BlockedTaskReport{TaskID: t.ID, Title: t.Title, BlockedBy: by})
			}
		}
	}
	health.BlockedCount = len(blocked)
	health.Score = score(health)
	health.Status = Classify(health.Score)
	return health, blocked
}

// Classify maps a score to a status.
func Classify(score float64) HealthStatus {
	switch {
	case score >= healthyThreshold:
		return Healthy
	case score >= atRiskThreshold:
		return AtRisk
	default:
		return Critical
	}
}

func score(h ExecutionHealth) float64 {
	if h.TotalCount == 0 {
		return 100
	}
	total := float64(h.TotalCount)
	completionPct := float64(h.CompletedCount) / total * 100
	// In-progress work counts half toward progress; completed work counts fully.
	progressPct := (float64(h.CompletedCount) + 0.5*float64(h.InProgressCount)) / total * 100
	blockPct := float64(h.BlockedCount) / total * 100

	s := completionPct*completionWeight + progressPct*progressWeight - blockPct*blockWeight
	s = math.Max(0, math.Min(100, s))
	return math.Round(s*10) / 10
}
