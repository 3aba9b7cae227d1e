package taskgraph

import (
	"fmt"
	"strings"

	"startupops/internal/stage"
)

// Status is the execution state of a task.
type Status string

const (
	Pending    Status = "pending"
	InProgress Status = "in_progress"
	Completed  Status = "completed"
)

// ParseStatus parses a user-supplied status.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case Pending:
		return Pending, nil
	case InProgress, "in-progress":
		return InProgress, nil
	case Completed:
		return Completed, nil
	}
	return "", fmt.Errorf("invalid task status %q (want pending, in_progress or completed)", s)
}

// Task is a node of the execution plan.
type Task struct {
	ID            string     `json:"id"`
	Stage         stage.Name `json:"stage"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Priority      int        `json:"priority"`
	EstimatedDays float64    `json:"estimated_days"`
	Status        Status     `json:"status"`
	Dependencies  []string   `json:"dependencies"`
}

// Index maps task ids to tasks.
func Index(tasks []Task) map[string]Task {
	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return byID
}
