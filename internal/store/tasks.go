package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"startupops/internal/stage"
	"startupops/internal/taskgraph"
)

// PersistTasks stores a run's task graph, replacing any tasks previously
// stored for the run.
func (s *Store) PersistTasks(ctx context.Context, runID string, tasks []taskgraph.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}

	now := s.timestamp()
	for i, t := range tasks {
		deps := t.Dependencies
		if deps == nil {
			deps = []string{}
		}
		depsJSON, err := json.Marshal(deps)
		if err != nil {
			return fmt.Errorf("marshal dependencies: %w", err)
		}
		status := t.Status
		if status == "" {
			status = taskgraph.Pending
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tasks (id, run_id, position, stage, title, description, priority,
			                   estimated_days, status, dependencies_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, runID, i, string(t.Stage), t.Title, t.Description, t.Priority,
			t.EstimatedDays, string(status), string(depsJSON), now)
		if err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateTaskStatus sets a task's status and returns the task's run and the
// status it had before.
func (s *Store) UpdateTaskStatus(ctx context.Context, taskID string, status taskgraph.Status) (string, taskgraph.Status, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var runID, previous string
	err = tx.QueryRowContext(ctx, "SELECT run_id, status FROM tasks WHERE id = ?", taskID).Scan(&runID, &previous)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", &NotFoundError{Entity: "task", ID: taskID}
	}
	if err != nil {
		return "", "", fmt.Errorf("get task: %w", err)
	}

	if previous != string(status) {
		_, err = tx.ExecContext(ctx, "UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?",
			string(status), s.timestamp(), taskID)
		if err != nil {
			return "", "", fmt.Errorf("update task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", "", fmt.Errorf("commit transaction: %w", err)
	}
	return runID, taskgraph.Status(previous), nil
}

// GetTask returns a task and the run it belongs to.
func (s *Store) GetTask(ctx context.Context, taskID string) (*taskgraph.Task, string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, id, stage, title, description, priority, estimated_days, status, dependencies_json
		FROM tasks
		WHERE id = ?
	`, taskID)
	var runID string
	task, err := scanTask(row, &runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", &NotFoundError{Entity: "task", ID: taskID}
	}
	if err != nil {
		return nil, "", fmt.Errorf("get task: %w", err)
	}
	return task, runID, nil
}

// ListTasks returns a run's tasks in graph construction order.
func (s *Store) ListTasks(ctx context.Context, runID string) ([]taskgraph.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, id, stage, title, description, priority, estimated_days, status, dependencies_json
		FROM tasks
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []taskgraph.Task
	for rows.Next() {
		var rid string
		task, err := scanTask(rows, &rid)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func scanTask(row rowScanner, runID *string) (*taskgraph.Task, error) {
	var t taskgraph.Task
	var stageName, status, depsJSON string
	if err := row.Scan(runID, &t.ID, &stageName, &t.Title, &t.Description, &t.Priority, &t.EstimatedDays, &status, &depsJSON); err != nil {
		return nil, err
	}
	t.Stage = stage.Name(stageName)
	t.Status = taskgraph.Status(status)
	if err := json.Unmarshal([]byte(depsJSON), &t.Dependencies); err != nil {
		return nil, fmt.Errorf("decode dependencies of %s: %w", t.ID, err)
	}
	return &t, nil
}
