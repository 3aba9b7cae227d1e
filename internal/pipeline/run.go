package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"startupops/internal/drift"
	"startupops/internal/stage"
	"startupops/internal/store"
	"startupops/internal/taskgraph"
)

// Outcome is everything one pipeline run produced.
type Outcome struct {
	RunID         string                      `json:"run_id"`
	Results       map[stage.Name]stage.Result `json:"results"`
	Statuses      map[stage.Name]string       `json:"statuses"`
	Tasks         []taskgraph.Task            `json:"tasks"`
	KPIs          []stage.KPI                 `json:"kpis"`
	AdvisorAlerts []stage.AdvisorAlert        `json:"advisor_alerts"`
	Health        drift.ExecutionHealth       `json:"health"`
	Alerts        []drift.Alert               `json:"alerts"`
	Duration      time.Duration               `json:"duration_ns"`
}

// Run validates sc, executes every stage, builds and stores the task graph,
// and computes the baseline execution health. On cancellation or a
// persistence failure the partial outcome is returned with the error and the
// run is marked cancelled or failed.
func (o *Orchestrator) Run(ctx context.Context, sc StartupContext) (*Outcome, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := o.newRunID()
	if err := o.store.CreateRun(ctx, store.Run{
		ID:       runID,
		Goal:     sc.Goal,
		Domain:   sc.Domain,
		TeamSize: sc.TeamSize,
	}); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	o.logger.Info("pipeline started", "run_id", runID, "domain", sc.Domain, "team_size", sc.TeamSize)
	o.logEvent("pipeline_started", map[string]any{
		"run_id":    runID,
		"goal":      sc.Goal,
		"domain":    sc.Domain,
		"team_size": sc.TeamSize,
	})

	out := &Outcome{RunID: runID}
	results, err := o.RunPipeline(ctx, runID, sc)
	out.Results = results
	out.Statuses = StageStatuses(results)
	if err != nil {
		return out, o.fail(ctx, out, start, err)
	}

	b := taskgraph.Builder{NewID: o.newTaskID}
	tasks, err := b.Build(results)
	if err != nil {
		return out, o.fail(ctx, out, start, fmt.Errorf("build task graph: %w", err))
	}
	out.Tasks = tasks

	persistCtx := context.WithoutCancel(ctx)
	if err := o.store.PersistTasks(persistCtx, runID, tasks); err != nil {
		return out, o.fail(ctx, out, start, fmt.Errorf("persist tasks: %w", err))
	}

	var kpis []stage.KPI
	for _, name := range []stage.Name{stage.Product, stage.Tech, stage.Marketing, stage.Finance} {
		kpis = append(kpis, stage.KPIs(name, results[name])...)
	}
	if err := o.store.PersistKPIs(persistCtx, runID, kpis); err != nil {
		return out, o.fail(ctx, out, start, fmt.Errorf("persist kpis: %w", err))
	}
	out.KPIs = kpis

	advisorAlerts := stage.AdvisorAlerts(results[stage.Advisor])
	if err := o.store.PersistAdvisorAlerts(persistCtx, runID, advisorAlerts); err != nil {
		return out, o.fail(ctx, out, start, fmt.Errorf("persist advisor alerts: %w", err))
	}
	out.AdvisorAlerts = advisorAlerts

	health, alerts, err := o.monitor.Baseline(persistCtx, runID)
	if err != nil {
		return out, o.fail(ctx, out, start, fmt.Errorf("baseline health: %w", err))
	}
	out.Health = health
	out.Alerts = alerts

	if err := o.store.FinishRun(persistCtx, runID, store.RunCompleted, ""); err != nil {
		return out, fmt.Errorf("finish run: %w", err)
	}
	out.Duration = time.Since(start)
	o.logger.Info("pipeline finished",
		"run_id", runID,
		"tasks", len(tasks),
		"health_score", health.Score,
		"health_status", health.Status,
		"duration", out.Duration,
	)
	o.logEvent("pipeline_finished", map[string]any{
		"run_id":        runID,
		"status":        store.RunCompleted,
		"stages":        out.Statuses,
		"task_count":    len(tasks),
		"health_score":  health.Score,
		"health_status": health.Status,
	})
	return out, nil
}

// fail marks the run cancelled or failed and returns cause.
func (o *Orchestrator) fail(ctx context.Context, out *Outcome, start time.Time, cause error) error {
	status := store.RunFailed
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		status = store.RunCancelled
	}
	out.Duration = time.Since(start)
	if err := o.store.FinishRun(context.WithoutCancel(ctx), out.RunID, status, cause.Error()); err != nil {
		o.logger.Warn("finish run failed", "run_id", out.RunID, "err", err)
	}
	o.logger.Error("pipeline stopped", "run_id", out.RunID, "status", status, "err", cause)
	o.logEvent("pipeline_finished", map[string]any{
		"run_id": out.RunID,
		"status": status,
		"stages": out.Statuses,
		"error":  cause.Error(),
	})
	return cause
}
