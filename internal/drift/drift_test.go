package drift

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"startupops/internal/taskgraph"
)

func task(id string, status taskgraph.Status, priority int, deps ...string) taskgraph.Task {
	return taskgraph.Task{ID: id, Title: "task " + id, Status: status, Priority: priority, Dependencies: deps}
}

func TestAnalyzeEmptyIsHealthy(t *testing.T) {
	health, blocked := Analyze(nil)
	assert.Equal(t, 100.0, health.Score)
	assert.Equal(t, Healthy, health.Status)
	assert.Empty(t, blocked)
	assert.Empty(t, GenerateAlerts(health, blocked))
}

func TestAnalyzeAllCompleted(t *testing.T) {
	tasks := []taskgraph.Task{
		task("a", taskgraph.Completed, 5),
		task("b", taskgraph.Completed, 5, "a"),
	}
	health, blocked := Analyze(tasks)
	assert.Equal(t, 100.0, health.Score)
	assert.Equal(t, Healthy, health.Status)
	assert.Equal(t, 2, health.CompletedCount)
	assert.Empty(t, blocked)
}

func TestAnalyzeMostlyBlockedIsCritical(t *testing.T) {
	// 10 pending tasks, 6 of them waiting on a pending root.
	tasks := []taskgraph.Task{task("root", taskgraph.Pending, 1)}
	for i := 0; i < 6; i++ {
		tasks = append(tasks, task(fmt.Sprintf("b%d", i), taskgraph.Pending, 1, "root"))
	}
	for i := 0; i < 3; i++ {
		tasks = append(tasks, task(fmt.Sprintf("f%d", i), taskgraph.Pending, 1))
	}

	health, blocked := Analyze(tasks)
	assert.Equal(t, 10, health.TotalCount)
	assert.Equal(t, 6, health.BlockedCount)
	assert.Len(t, blocked, 6)
	assert.Equal(t, 0.0, health.Score)
	assert.Equal(t, Critical, health.Status)
}

func TestAnalyzeBlockedOnlyWhenPending(t *testing.T) {
	tasks := []taskgraph.Task{
		task("a", taskgraph.InProgress, 3),
		task("b", taskgraph.InProgress, 3, "a"),
		task("c", taskgraph.Pending, 3, "a", "ghost"),
		task("d", taskgraph.Pending, 3, "ghost"),
	}
	_, blocked := Analyze(tasks)
	require.Len(t, blocked, 1)
	assert.Equal(t, "c", blocked[0].TaskID)
	assert.Equal(t, []string{"a"}, blocked[0].BlockedBy)
}

func TestScoreWeights(t *testing.T) {
	// 2 completed, 1 in progress, 1 blocked of 4:
	// completion 50*0.6 + progress (2+0.5)/4=62.5*0.3 - blocked 25*0.1 = 46.25
	tasks := []taskgraph.Task{
		task("a", taskgraph.Completed, 3),
		task("b", taskgraph.Completed, 3),
		task("c", taskgraph.InProgress, 3),
		task("d", taskgraph.Pending, 3, "c"),
	}
	health, _ := Analyze(tasks)
	assert.Equal(t, 46.3, health.Score)
	assert.Equal(t, AtRisk, health.Status)
}

func TestScoreCountsInProgressAsHalfDone(t *testing.T) {
	all := []taskgraph.Task{
		task("a", taskgraph.InProgress, 3),
		task("b", taskgraph.InProgress, 3),
	}
	health, _ := Analyze(all)
	// progress 50*0.3
	assert.Equal(t, 15.0, health.Score)

	done := []taskgraph.Task{
		task("a", taskgraph.Completed, 3),
		task("b", taskgraph.Completed, 3),
		task("c", taskgraph.Completed, 3),
	}
	health, _ = Analyze(done)
	assert.Equal(t, 100.0, health.Score)
	assert.Equal(t, Healthy, health.Status)
}

func TestScoreRoundsToOneDecimal(t *testing.T) {
	// 2 of 3 completed, 1 in progress: 40 + 25 = 65
	tasks := []taskgraph.Task{
		task("a", taskgraph.Completed, 3),
		task("b", taskgraph.Completed, 3),
		task("c", taskgraph.InProgress, 3),
	}
	health, _ := Analyze(tasks)
	assert.Equal(t, 65.0, health.Score)
	assert.Equal(t, AtRisk, health.Status)

	// 1 of 7 completed: 90/7 = 12.857...
	tasks = []taskgraph.Task{task("a", taskgraph.Completed, 3)}
	for i := 0; i < 6; i++ {
		tasks = append(tasks, task(fmt.Sprintf("p%d", i), taskgraph.Pending, 3))
	}
	health, _ = Analyze(tasks)
	assert.Equal(t, 12.9, health.Score)
	assert.Equal(t, Critical, health.Status)

	// 1 of 7 in progress: 15/7 = 2.142...
	tasks[0].Status = taskgraph.InProgress
	health, _ = Analyze(tasks)
	assert.Equal(t, 2.1, health.Score)
}

func TestClassifyBoundaries(t *testing.T) {
	assert.Equal(t, Healthy, Classify(70))
	assert.Equal(t, AtRisk, Classify(69.9))
	assert.Equal(t, AtRisk, Classify(40))
	assert.Equal(t, Critical, Classify(39.9))
}

func TestGenerateAlerts(t *testing.T) {
	tests := []struct {
		name     string
		health   ExecutionHealth
		blocked  []BlockedTaskReport
		want     []string
		severity []Severity
	}{
		{
			name:   "healthy",
			health: ExecutionHealth{Score: 82.5, PendingHighPriority: 2},
		},
		{
			name:     "at risk",
			health:   ExecutionHealth{Score: 55.5},
			want:     []string{"Execution health is at risk: 55.5%"},
			severity: []Severity{SeverityWarning},
		},
		{
			name:     "critical with everything",
			health:   ExecutionHealth{Score: 0, PendingHighPriority: 4},
			blocked:  []BlockedTaskReport{{TaskID: "a"}, {TaskID: "b"}},
			want:     []string{"4 high-priority tasks are still pending", "2 tasks are blocked by dependencies", "Execution health is critical: 0.0%"},
			severity: []Severity{SeverityWarning, SeverityWarning, SeverityCritical},
		},
		{
			name:     "boundary 40 is at risk",
			health:   ExecutionHealth{Score: 40},
			want:     []string{"Execution health is at risk: 40.0%"},
			severity: []Severity{SeverityWarning},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := GenerateAlerts(tt.health, tt.blocked)
			var msgs []string
			var sevs []Severity
			for _, a := range alerts {
				assert.True(t, a.Active)
				assert.NotEmpty(t, a.RecommendedAction)
				msgs = append(msgs, a.Message)
				sevs = append(sevs, a.Severity)
			}
			assert.Equal(t, tt.want, msgs)
			assert.Equal(t, tt.severity, sevs)
		})
	}
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, ParseSeverity("critical"))
	assert.Equal(t, SeverityWarning, ParseSeverity("warning"))
	assert.Equal(t, SeverityInfo, ParseSeverity("info"))
	assert.Equal(t, SeverityInfo, ParseSeverity("whatever"))
}

type fakeStore struct {
	runID     string
	tasks     []taskgraph.Task
	persisted [][]Alert
	updateErr error
}

func (f *fakeStore) UpdateTaskStatus(_ context.Context, taskID string, status taskgraph.Status) (string, taskgraph.Status, error) {
	if f.updateErr != nil {
		return "", "", f.updateErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == taskID {
			prev := f.tasks[i].Status
			f.tasks[i].Status = status
			return f.runID, prev, nil
		}
	}
	return "", "", errors.New("not found")
}

func (f *fakeStore) ListTasks(_ context.Context, runID string) ([]taskgraph.Task, error) {
	out := make([]taskgraph.Task, len(f.tasks))
	copy(out, f.tasks)
	return out, nil
}

func (f *fakeStore) PersistAlerts(_ context.Context, _ string, alerts []Alert) error {
	f.persisted = append(f.persisted, alerts)
	return nil
}

type recordingAudit struct{ events []string }

func (r *recordingAudit) LogEvent(_ string, eventType string, _ any) error {
	r.events = append(r.events, eventType)
	return nil
}

func TestMonitorOnTaskStatusChanged(t *testing.T) {
	store := &fakeStore{
		runID: "run-1",
		tasks: []taskgraph.Task{
			task("a", taskgraph.Pending, 5),
			task("b", taskgraph.Pending, 5, "a"),
		},
	}
	audit := &recordingAudit{}
	m := &Monitor{Store: store, Audit: audit}
	ctx := context.Background()

	health, alerts, err := m.Baseline(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, health.BlockedCount)
	assert.Equal(t, Critical, health.Status)
	require.Len(t, store.persisted, 1)
	assert.Equal(t, alerts, store.persisted[0])

	health, alerts, err = m.OnTaskStatusChanged(ctx, "a", taskgraph.Completed)
	require.NoError(t, err)
	assert.Equal(t, 0, health.BlockedCount)
	// 1 of 2 completed: 50*0.6 + 50*0.3
	assert.Equal(t, 45.0, health.Score)
	assert.Equal(t, AtRisk, health.Status)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Execution health is at risk: 45.0%", alerts[0].Message)
	assert.Len(t, store.persisted, 2)

	health, alerts, err = m.OnTaskStatusChanged(ctx, "a", taskgraph.Completed)
	require.NoError(t, err)
	assert.Nil(t, alerts)
	assert.Equal(t, 45.0, health.Score)
	assert.Len(t, store.persisted, 2, "unchanged status must not store alerts")

	assert.Equal(t, []string{"alerts_generated", "task_status_changed", "alerts_generated"}, audit.events)
}

func TestMonitorPropagatesStoreErrors(t *testing.T) {
	store := &fakeStore{updateErr: errors.New("disk full")}
	m := &Monitor{Store: store}
	_, _, err := m.OnTaskStatusChanged(context.Background(), "a", taskgraph.Completed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
