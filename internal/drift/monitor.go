package drift

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"startupops/internal/taskgraph"
)

// TaskStore is the persistence the monitor needs.
type TaskStore interface {
	// UpdateTaskStatus sets a task's status and returns the task's run and
	// its previous status.
	UpdateTaskStatus(ctx context.Context, taskID string, status taskgraph.Status) (runID string, previous taskgraph.Status, err error)
	ListTasks(ctx context.Context, runID string) ([]taskgraph.Task, error)
	PersistAlerts(ctx context.Context, runID string, alerts []Alert) error
}

// EventLogger records audit events. Failures are logged and ignored.
type EventLogger interface {
	LogEvent(actor string, eventType string, payload any) error
}

// Monitor re-evaluates execution health whenever task state changes.
type Monitor struct {
	Store  TaskStore
	Audit  EventLogger
	Logger *slog.Logger

	// mu keeps an update and the snapshot taken after it together.
	mu sync.Mutex
}

// Baseline evaluates a freshly built plan and stores the alerts it raises.
func (m *Monitor) Baseline(ctx context.Context, runID string) (ExecutionHealth, []Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evaluate(ctx, runID, true)
}

// Health evaluates a run without storing alerts.
func (m *Monitor) Health(ctx context.Context, runID string) (ExecutionHealth, []BlockedTaskReport, error) {
	tasks, err := m.Store.ListTasks(ctx, runID)
	if err != nil {
		return ExecutionHealth{}, nil, fmt.Errorf("list tasks: %w", err)
	}
	health, blocked := Analyze(tasks)
	return health, blocked, nil
}

// OnTaskStatusChanged applies a status change and re-evaluates the task's
// run. When the status did not actually change the current health is
// returned with no alerts.
func (m *Monitor) OnTaskStatusChanged(ctx context.Context, taskID string, status taskgraph.Status) (ExecutionHealth, []Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runID, previous, err := m.Store.UpdateTaskStatus(ctx, taskID, status)
	if err != nil {
		return ExecutionHealth{}, nil, fmt.Errorf("update task status: %w", err)
	}
	if previous == status {
		m.logger().Debug("task status unchanged", "task_id", taskID, "status", status)
		health, _, err := m.evaluate(ctx, runID, false)
		return health, nil, err
	}

	m.logEvent("task_status_changed", map[string]any{
		"run_id":   runID,
		"task_id":  taskID,
		"previous": previous,
		"status":   status,
	})
	return m.evaluate(ctx, runID, true)
}

func (m *Monitor) evaluate(ctx context.Context, runID string, persist bool) (ExecutionHealth, []Alert, error) {
	tasks, err := m.Store.ListTasks(ctx, runID)
	if err != nil {
		return ExecutionHealth{}, nil, fmt.Errorf("list tasks: %w", err)
	}
	health, blocked := Analyze(tasks)
	if !persist {
		return health, nil, nil
	}

	alerts := GenerateAlerts(health, blocked)
	if len(alerts) > 0 {
		if err := m.Store.PersistAlerts(ctx, runID, alerts); err != nil {
			return health, nil, fmt.Errorf("persist alerts: %w", err)
		}
		m.logEvent("alerts_generated", map[string]any{
			"run_id": runID,
			"count":  len(alerts),
			"score":  health.Score,
		})
	}
	m.logger().Info("execution health evaluated",
		"run_id", runID,
		"score", health.Score,
		"status", health.Status,
		"blocked", health.BlockedCount,
		"alerts", len(alerts))
	return health, alerts, nil
}

func (m *Monitor) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Monitor) logEvent(eventType string, payload any) {
	if m.Audit == nil {
		return
	}
	if err := m.Audit.LogEvent("drift", eventType, payload); err != nil {
		m.logger().Warn("audit log failed", "event", eventType, "err", err)
	}
}
