package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"startupops/internal/drift"
	"startupops/internal/stage"
	"startupops/internal/taskgraph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "store.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createRun(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.CreateRun(context.Background(), Run{ID: id, Goal: "Build a thing people want", Domain: "fintech", TeamSize: 3}))
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	createRun(t, s, "run-1")
	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)
	assert.Equal(t, 3, run.TeamSize)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, s.FinishRun(ctx, "run-1", RunCompleted, ""))
	run, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, run.Status)
	assert.NotNil(t, run.FinishedAt)

	latest, err := s.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = s.GetRun(ctx, "missing")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(s.FinishRun(ctx, "missing", RunFailed, "x")))
}

func TestLatestRunIDEmpty(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LatestRunID(context.Background())
	assert.True(t, IsNotFound(err))
}

func TestStageResultsAreAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createRun(t, s, "run-1")

	require.NoError(t, s.RecordStageResult(ctx, "run-1", stage.Product, stage.Result{"tasks": []any{}}))
	require.NoError(t, s.RecordStageResult(ctx, "run-1", stage.Tech, stage.ErrorResult(stage.Tech, errors.New("timeout"))))
	require.NoError(t, s.RecordStageResult(ctx, "run-1", stage.Tech, stage.Result{"tasks": []any{}}))

	records, err := s.ListStageResults(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, stage.Product, records[0].Stage)
	assert.Equal(t, StageCompleted, records[0].Status)
	assert.Equal(t, StageFailed, records[1].Status)
	assert.Equal(t, "timeout", records[1].Result.Error())
	assert.Equal(t, StageCompleted, records[2].Status)
}

func sampleTasks() []taskgraph.Task {
	return []taskgraph.Task{
		{ID: "a", Stage: stage.Product, Title: "A", Priority: 5, EstimatedDays: 0.5, Status: taskgraph.Pending, Dependencies: []string{}},
		{ID: "b", Stage: stage.Tech, Title: "B", Description: "build", Priority: 3, EstimatedDays: 1, Status: taskgraph.Pending, Dependencies: []string{"a"}},
	}
}

func TestPersistAndListTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createRun(t, s, "run-1")

	require.NoError(t, s.PersistTasks(ctx, "run-1", sampleTasks()))
	got, err := s.ListTasks(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, sampleTasks(), got)

	// Persisting again replaces rather than duplicates.
	require.NoError(t, s.PersistTasks(ctx, "run-1", sampleTasks()[:1]))
	got, err = s.ListTasks(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	task, runID, err := s.GetTask(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	assert.Equal(t, "A", task.Title)
	assert.Equal(t, 0.5, task.EstimatedDays)

	_, _, err = s.GetTask(ctx, "zzz")
	assert.True(t, IsNotFound(err))
}

func TestUpdateTaskStatusReturnsPrevious(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createRun(t, s, "run-1")
	require.NoError(t, s.PersistTasks(ctx, "run-1", sampleTasks()))

	runID, prev, err := s.UpdateTaskStatus(ctx, "a", taskgraph.InProgress)
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	assert.Equal(t, taskgraph.Pending, prev)

	_, prev, err = s.UpdateTaskStatus(ctx, "a", taskgraph.InProgress)
	require.NoError(t, err)
	assert.Equal(t, taskgraph.InProgress, prev)

	_, _, err = s.UpdateTaskStatus(ctx, "nope", taskgraph.Completed)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "task", nf.Entity)
}

func TestAlertsAndKPIs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createRun(t, s, "run-1")

	require.NoError(t, s.PersistAlerts(ctx, "run-1", []drift.Alert{
		{Severity: drift.SeverityWarning, Message: "2 tasks are blocked by dependencies", RecommendedAction: "unblock", Active: true},
	}))
	require.NoError(t, s.PersistAdvisorAlerts(ctx, "run-1", []stage.AdvisorAlert{
		{Severity: "critical", Message: "Runway is short", RecommendedAction: "raise"},
	}))
	require.NoError(t, s.PersistAlerts(ctx, "run-1", nil))

	alerts, err := s.ListAlerts(ctx, "run-1", true)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, SourceDrift, alerts[0].Source)
	assert.Equal(t, SourceAdvisor, alerts[1].Source)
	assert.Equal(t, drift.SeverityCritical, alerts[1].Severity)
	assert.True(t, alerts[1].Active)
	assert.NotEmpty(t, alerts[0].ID)

	require.NoError(t, s.DismissAlert(ctx, alerts[0].ID))
	active, err := s.ListAlerts(ctx, "run-1", true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	all, err := s.ListAlerts(ctx, "run-1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.True(t, IsNotFound(s.DismissAlert(ctx, "missing")))

	kpis := []stage.KPI{
		{Stage: stage.Marketing, Name: "Waitlist Signups", TargetValue: 500, Unit: "users"},
		{Stage: stage.Finance, Name: "Runway Months", TargetValue: 6, Unit: "months"},
	}
	require.NoError(t, s.PersistKPIs(ctx, "run-1", kpis))
	got, err := s.ListKPIs(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, kpis, got)
}

func TestStoreSatisfiesMonitor(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createRun(t, s, "run-1")
	require.NoError(t, s.PersistTasks(ctx, "run-1", sampleTasks()))

	m := &drift.Monitor{Store: s}
	health, _, err := m.OnTaskStatusChanged(ctx, "a", taskgraph.Completed)
	require.NoError(t, err)
	assert.Equal(t, 1, health.CompletedCount)
	assert.Equal(t, 0, health.BlockedCount)
}
