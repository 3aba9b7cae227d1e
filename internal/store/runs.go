package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"startupops/internal/stage"
)

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

const (
	StageCompleted = "completed"
	StageFailed    = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID         string
	Goal       string
	Domain     string
	TeamSize   int
	Status     string
	CreatedAt  time.Time
	FinishedAt *time.Time
	Error      string
}

// StageRecord is one entry of the append-only stage result log.
type StageRecord struct {
	ID         int64
	RunID      string
	Stage      stage.Name
	Status     string
	Result     stage.Result
	RecordedAt time.Time
}

// CreateRun inserts a run in the running state.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (id, goal, domain, team_size, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Goal, run.Domain, run.TeamSize, RunRunning, s.timestamp())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the final status of a run.
func (s *Store) FinishRun(ctx context.Context, runID, status, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET status = ?, finished_at = ?, error = ?
		WHERE id = ?
	`, status, s.timestamp(), errMsg, runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &NotFoundError{Entity: "run", ID: runID}
	}
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, goal, domain, team_size, status, created_at, finished_at, error
		FROM pipeline_runs
		WHERE id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "run", ID: runID}
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal, domain, team_size, status, created_at, finished_at, error
		FROM pipeline_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRunID returns the id of the most recently created run.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM pipeline_runs ORDER BY created_at DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &NotFoundError{Entity: "run", ID: "latest"}
	}
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var createdAt string
	var finishedAt, errMsg sql.NullString
	if err := row.Scan(&run.ID, &run.Goal, &run.Domain, &run.TeamSize, &run.Status, &createdAt, &finishedAt, &errMsg); err != nil {
		return nil, err
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.FinishedAt = parseTime(finishedAt)
	run.Error = errMsg.String
	return &run, nil
}

// RecordStageResult appends a stage result to the run's log. Error-shaped
// results are recorded as failed.
func (s *Store) RecordStageResult(ctx context.Context, runID string, name stage.Name, result stage.Result) error {
	status := StageCompleted
	if result.IsError() {
		status = StageFailed
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal %s result: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stage_results (run_id, stage, status, result_json, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, string(name), status, string(payload), s.timestamp())
	if err != nil {
		return fmt.Errorf("insert %s result: %w", name, err)
	}
	return nil
}

// ListStageResults returns a run's stage log in recording order.
func (s *Store) ListStageResults(ctx context.Context, runID string) ([]StageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, stage, status, result_json, recorded_at
		FROM stage_results
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stage results: %w", err)
	}
	defer rows.Close()

	var records []StageRecord
	for rows.Next() {
		var rec StageRecord
		var name, payload, recordedAt string
		if err := rows.Scan(&rec.ID, &rec.RunID, &name, &rec.Status, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		rec.Stage = stage.Name(name)
		if err := json.Unmarshal([]byte(payload), &rec.Result); err != nil {
			return nil, fmt.Errorf("decode %s result: %w", name, err)
		}
		rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage results: %w", err)
	}
	return records, nil
}
