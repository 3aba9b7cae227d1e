package stage

import (
	"math"
	"strings"
)

const (
	DefaultTitle         = "Untitled Task"
	DefaultPriority      = 3
	DefaultEstimatedDays = 1
	MinPriority          = 1
	MaxPriority          = 5
)

// RawTask is a task as emitted by a stage, before global ids are assigned.
// LocalDependencies are indices into the same stage's task list.
type RawTask struct {
	Title             string
	Description       string
	Priority          int
	EstimatedDays     float64
	LocalDependencies []int
}

// DecodeRawTask reads a loosely shaped task object. Missing or invalid fields
// fall back to defaults; fractional day estimates are kept as given; dependency entries that are not non-negative
// integers are dropped.
func DecodeRawTask(m map[string]any) RawTask {
	t := RawTask{
		Title:         DefaultTitle,
		Priority:      DefaultPriority,
		EstimatedDays: DefaultEstimatedDays,
	}
	if s, ok := m["title"].(string); ok && strings.TrimSpace(s) != "" {
		t.Title = s
	}
	if s, ok := m["description"].(string); ok {
		t.Description = s
	}
	if p, ok := asInt(m["priority"]); ok {
		t.Priority = min(max(p, MinPriority), MaxPriority)
	}
	if d, ok := asFloat(m["estimated_days"]); ok && d > 0 && !math.IsInf(d, 0) {
		t.EstimatedDays = d
	}

	deps, ok := m["local_dependencies"].([]any)
	if !ok {
		deps, _ = m["dependencies"].([]any)
	}
	for _, d := range deps {
		idx, ok := asInt(d)
		if !ok || idx < 0 {
			continue
		}
		t.LocalDependencies = append(t.LocalDependencies, idx)
	}
	return t
}
