package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"startupops/internal/drift"
	"startupops/internal/stage"
	"startupops/internal/store"
	"startupops/internal/taskgraph"
)

func samplePlan() []taskgraph.Task {
	return []taskgraph.Task{
		{ID: "01A", Stage: stage.Product, Title: "Interview customers", Priority: 5, EstimatedDays: 2, Status: taskgraph.Completed},
		{ID: "01B", Stage: stage.Product, Title: "Write PRD", Priority: 4, EstimatedDays: 3, Status: taskgraph.Pending, Dependencies: []string{"01A"}},
		{ID: "01C", Stage: stage.Tech, Title: "Set up repo", Priority: 5, EstimatedDays: 1, Status: taskgraph.InProgress, Dependencies: []string{"01A"}},
	}
}

func TestRenderPlanUsesStagePositions(t *testing.T) {
	want := `product[0] Interview customers
  priority=5 days=2 status=completed
  after: -
product[1] Write PRD
  priority=4 days=3 status=pending
  after: product[0]
tech[0] Set up repo
  priority=5 days=1 status=in_progress
  after: product[0]
`
	assert.Equal(t, want, RenderPlan(samplePlan()))
}

func TestDiffRuns(t *testing.T) {
	a := samplePlan()
	b := samplePlan()
	// Fresh ids with the same shape render identically.
	b[0].ID, b[1].ID, b[2].ID = "02A", "02B", "02C"
	b[1].Dependencies = []string{"02A"}
	b[2].Dependencies = []string{"02A"}

	diff, err := DiffRuns("run-a", a, "run-b", b)
	require.NoError(t, err)
	assert.Empty(t, diff)

	b[1].Status = taskgraph.Completed
	diff, err = DiffRuns("run-a", a, "run-b", b)
	require.NoError(t, err)
	assert.Contains(t, diff, "--- run-a")
	assert.Contains(t, diff, "+++ run-b")
	assert.Contains(t, diff, "-  priority=4 days=3 status=pending")
	assert.Contains(t, diff, "+  priority=4 days=3 status=completed")
}

func TestTasksTable(t *testing.T) {
	r := New(ASCII, false)
	out := r.TasksTable(samplePlan())
	assert.Contains(t, out, "Interview customers")
	assert.Contains(t, out, "01C")
	assert.Contains(t, out, "product[0]")
	assert.Contains(t, strings.ToLower(out), "3 tasks")
	assert.NotContains(t, out, "\x1b[")

	assert.Equal(t, "No tasks found\n", r.TasksTable(nil))
}

func TestMarkdownTables(t *testing.T) {
	r := New(Markdown, true)
	out := r.TasksTable(samplePlan())
	assert.True(t, strings.HasPrefix(out, "| # |"), out)
	assert.NotContains(t, out, "\x1b[", "markdown output is never coloured")
}

func TestColorApplied(t *testing.T) {
	r := New(ASCII, true)
	out := r.HealthSummary(drift.ExecutionHealth{Score: 12.5, Status: drift.Critical, TotalCount: 4}, nil)
	assert.Contains(t, out, "Execution health: 12.5")
	assert.Contains(t, out, "\x1b[")
}

func TestHealthSummaryListsBlocked(t *testing.T) {
	r := New(ASCII, false)
	out := r.HealthSummary(
		drift.ExecutionHealth{Score: 45, Status: drift.AtRisk, TotalCount: 3, BlockedCount: 1},
		[]drift.BlockedTaskReport{{TaskID: "01B", Title: "Write PRD", BlockedBy: []string{"01A"}}},
	)
	assert.Contains(t, out, "Execution health: 45.0 (at_risk)")
	assert.Contains(t, out, "Write PRD")
	assert.Contains(t, out, "01A")
}

func TestAlertsAndStagesTables(t *testing.T) {
	r := New(ASCII, false)
	alerts := []store.StoredAlert{{
		Alert:  drift.Alert{Severity: drift.SeverityWarning, Message: "Tasks blocked", RecommendedAction: "Unblock", Active: true},
		ID:     "al-1",
		Source: store.SourceDrift,
	}}
	out := r.AlertsTable(alerts)
	assert.Contains(t, out, "al-1")
	assert.Contains(t, out, "warning")
	assert.Equal(t, "No alerts\n", r.AlertsTable(nil))

	records := []store.StageRecord{
		{Stage: stage.Product, Status: store.StageCompleted, Result: stage.Result{"tasks": []any{map[string]any{"title": "a"}}}},
		{Stage: stage.Tech, Status: store.StageFailed, Result: stage.Result{"error": "timeout", "agent": "tech"}},
	}
	out = r.StagesTable(records)
	assert.Contains(t, out, "product")
	assert.Contains(t, out, "timeout")
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, Markdown, ParseMode("markdown"))
	assert.Equal(t, Markdown, ParseMode("md"))
	assert.Equal(t, ASCII, ParseMode("table"))
}
