package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"startupops/internal/agents"
	"startupops/internal/drift"
	"startupops/internal/stage"
	"startupops/internal/store"
	"startupops/internal/taskgraph"
	"startupops/internal/throttle"
)

// Store is the persistence a pipeline run writes to.
type Store interface {
	drift.TaskStore
	CreateRun(ctx context.Context, run store.Run) error
	FinishRun(ctx context.Context, runID, status, errMsg string) error
	RecordStageResult(ctx context.Context, runID string, name stage.Name, result stage.Result) error
	PersistTasks(ctx context.Context, runID string, tasks []taskgraph.Task) error
	PersistKPIs(ctx context.Context, runID string, kpis []stage.KPI) error
	PersistAdvisorAlerts(ctx context.Context, runID string, alerts []stage.AdvisorAlert) error
}

// Options configures an Orchestrator. Agent, Throttle and Store are required.
type Options struct {
	Agent    agents.Agent
	Throttle *throttle.Throttle
	Store    Store
	Audit    drift.EventLogger
	Logger   *slog.Logger
	// CallTimeout bounds one agent call once it has started. Zero means no
	// bound beyond the agent's own.
	CallTimeout time.Duration
	NewRunID    func() string
	NewTaskID   func() string
}

// Orchestrator runs the five planning stages against a shared throttle.
type Orchestrator struct {
	agent       agents.Agent
	throttle    *throttle.Throttle
	store       Store
	audit       drift.EventLogger
	logger      *slog.Logger
	monitor     *drift.Monitor
	callTimeout time.Duration
	newRunID    func() string
	newTaskID   func() string
}

// New validates opts and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if opts.Throttle == nil {
		return nil, errors.New("throttle is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newRunID := opts.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	newTaskID := opts.NewTaskID
	if newTaskID == nil {
		newTaskID = taskgraph.NewULIDSource()
	}
	return &Orchestrator{
		agent:       opts.Agent,
		throttle:    opts.Throttle,
		store:       opts.Store,
		audit:       opts.Audit,
		logger:      logger,
		monitor:     &drift.Monitor{Store: opts.Store, Audit: opts.Audit, Logger: logger},
		callTimeout: opts.CallTimeout,
		newRunID:    newRunID,
		newTaskID:   newTaskID,
	}, nil
}

// RunPipeline executes product, tech, marketing and finance concurrently,
// then advisor, recording every stage result before moving past it. A
// failing stage yields an error-shaped result and downstream stages see its
// output as empty. Only persistence failures and cancellation return an
// error; in both cases the results gathered so far are returned with it.
func (o *Orchestrator) RunPipeline(ctx context.Context, runID string, sc StartupContext) (map[stage.Name]stage.Result, error) {
	results := make(map[stage.Name]stage.Result, len(stage.All()))

	product, err := o.runStage(ctx, runID, stage.ProductInput{Goal: sc.Goal, Domain: sc.Domain, TeamSize: sc.TeamSize})
	if err != nil {
		return results, err
	}
	results[stage.Product] = product

	tech, err := o.runStage(ctx, runID, stage.NewTechInput(product, sc.TeamSize))
	if err != nil {
		return results, err
	}
	results[stage.Tech] = tech

	var marketing, finance stage.Result
	var g errgroup.Group
	g.Go(func() error {
		var err error
		marketing, err = o.runStage(ctx, runID, stage.NewMarketingInput(product, sc.Domain))
		return err
	})
	g.Go(func() error {
		var err error
		finance, err = o.runStage(ctx, runID, stage.NewFinanceInput(product, tech, sc.TeamSize))
		return err
	})
	err = g.Wait()
	if marketing != nil {
		results[stage.Marketing] = marketing
	}
	if finance != nil {
		results[stage.Finance] = finance
	}
	if err != nil {
		return results, err
	}

	advisor, err := o.runStage(ctx, runID, stage.NewAdvisorInput(results, sc.Goal, sc.TeamSize))
	if err != nil {
		return results, err
	}
	results[stage.Advisor] = advisor
	return results, nil
}

// runStage invokes one stage under the throttle and records its result. A
// stage that has not started when ctx is done is skipped; once the agent
// call has started it runs to completion and is recorded regardless.
func (o *Orchestrator) runStage(ctx context.Context, runID string, in stage.Input) (stage.Result, error) {
	name := in.Stage()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s stage not started: %w", name, err)
	}

	waitStart := time.Now()
	if err := o.throttle.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("%s stage not started: %w", name, err)
	}
	o.logger.Debug("throttle slot acquired", "run_id", runID, "stage", name, "waited", time.Since(waitStart))
	o.logEvent("stage_started", map[string]any{"run_id": runID, "stage": name})

	callCtx := context.WithoutCancel(ctx)
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, o.callTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := o.agent.Invoke(callCtx, name, in.Payload())
	o.throttle.Release()
	if err == nil {
		err = stage.Validate(name, result)
	}
	if err != nil {
		var rf *stage.ReasoningFailure
		if !errors.As(err, &rf) {
			rf = &stage.ReasoningFailure{Stage: name, Err: err}
		}
		o.logger.Warn("stage failed", "run_id", runID, "stage", name, "err", rf.Err)
		result = stage.ErrorResult(name, rf.Err)
	}

	if err := o.store.RecordStageResult(context.WithoutCancel(ctx), runID, name, result); err != nil {
		return nil, fmt.Errorf("record %s result: %w", name, err)
	}

	status := store.StageCompleted
	if result.IsError() {
		status = store.StageFailed
	}
	o.logger.Info("stage finished", "run_id", runID, "stage", name, "status", status, "duration", time.Since(start))
	o.logEvent("stage_finished", map[string]any{"run_id": runID, "stage": name, "status": status})
	return result, nil
}

func (o *Orchestrator) logEvent(eventType string, payload any) {
	if o.audit == nil {
		return
	}
	if err := o.audit.LogEvent("pipeline", eventType, payload); err != nil {
		o.logger.Warn("audit log failed", "event", eventType, "err", err)
	}
}

// StageStatuses reports completed or failed per stage, and not_started for
// stages without a result.
func StageStatuses(results map[stage.Name]stage.Result) map[stage.Name]string {
	statuses := make(map[stage.Name]string, len(stage.All()))
	for _, name := range stage.All() {
		r, ok := results[name]
		switch {
		case !ok:
			statuses[name] = "not_started"
		case r.IsError():
			statuses[name] = store.StageFailed
		default:
			statuses[name] = store.StageCompleted
		}
	}
	return statuses
}
