package report

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"startupops/internal/taskgraph"
)

// planLabels names each task by its stage and position within that stage,
// which stays stable across runs while task ids do not.
func planLabels(tasks []taskgraph.Task) map[string]string {
	labels := make(map[string]string, len(tasks))
	counts := map[string]int{}
	for _, t := range tasks {
		s := string(t.Stage)
		labels[t.ID] = fmt.Sprintf("%s[%d]", s, counts[s])
		counts[s]++
	}
	return labels
}

func dependencyLabels(t taskgraph.Task, labels map[string]string) string {
	if len(t.Dependencies) == 0 {
		return "-"
	}
	out := make([]string, 0, len(t.Dependencies))
	for _, dep := range t.Dependencies {
		if l, ok := labels[dep]; ok {
			out = append(out, l)
		} else {
			out = append(out, dep)
		}
	}
	return strings.Join(out, ", ")
}

// RenderPlan lists tasks as plain text keyed by stage position, one block
// per task.
func RenderPlan(tasks []taskgraph.Task) string {
	labels := planLabels(tasks)
	var sb strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&sb, "%s %s\n", labels[t.ID], t.Title)
		fmt.Fprintf(&sb, "  priority=%d days=%g status=%s\n", t.Priority, t.EstimatedDays, t.Status)
		fmt.Fprintf(&sb, "  after: %s\n", dependencyLabels(t, labels))
	}
	return sb.String()
}

// DiffRuns returns a unified diff between the plans of two runs, or an empty
// string when they render identically.
func DiffRuns(nameA string, a []taskgraph.Task, nameB string, b []taskgraph.Task) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(RenderPlan(a)),
		B:        difflib.SplitLines(RenderPlan(b)),
		FromFile: nameA,
		ToFile:   nameB,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff plans: %w", err)
	}
	return text, nil
}
