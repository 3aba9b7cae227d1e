package daemon

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// Store is the SQLite queue of pipeline-run jobs. Each finished job is
// linked to the run it produced.
type Store struct {
	DBPath string
	db     *sql.DB
	now    func() time.Time
}

// Job is one queued request. RunID is set once the pipeline run it asked
// for has been recorded.
type Job struct {
	ID             string
	Type           string
	Status         string
	ScheduledAt    time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
	PayloadJSON    string
	ResultJSON     string
	RunID          string
	LeaseOwner     string
	LeaseExpiresAt *time.Time
}

// Open opens or creates the queue database at path.
func Open(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve queue db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure queue db dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{
		DBPath: absPath,
		db:     db,
		now:    time.Now,
	}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS pipeline_jobs (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	scheduled_at TEXT NOT NULL,
	started_at TEXT,
	finished_at TEXT,
	payload_json TEXT,
	result_json TEXT,
	run_id TEXT,
	lease_owner TEXT,
	lease_expires_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_scheduled ON pipeline_jobs(status, scheduled_at);
CREATE INDEX IF NOT EXISTS idx_jobs_run ON pipeline_jobs(run_id);

CREATE TABLE IF NOT EXISTS queue_state (
	key TEXT PRIMARY KEY,
	value TEXT
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create queue schema: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Enqueue adds a job that becomes claimable at scheduledAt.
func (s *Store) Enqueue(ctx context.Context, jobType string, scheduledAt time.Time, payload any) (string, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	jobID := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_jobs (id, type, status, scheduled_at, payload_json)
		VALUES (?, ?, ?, ?, ?)
	`, jobID, jobType, JobQueued, formatTime(scheduledAt), string(payloadJSON))
	if err != nil {
		return "", fmt.Errorf("insert job: %w", err)
	}
	return jobID, nil
}

// ClaimNext atomically claims the oldest job that is ready to run. A running
// job whose lease has expired is claimable again. It returns nil when no job
// is ready.
func (s *Store) ClaimNext(ctx context.Context, now time.Time, leaseOwner string, leaseFor time.Duration) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	nowStr := formatTime(now)
	var jobID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM pipeline_jobs
		WHERE (status = ? AND scheduled_at <= ?)
		   OR (status = ? AND lease_expires_at < ?)
		ORDER BY scheduled_at ASC, rowid ASC
		LIMIT 1
	`, JobQueued, nowStr, JobRunning, nowStr).Scan(&jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find next job: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE pipeline_jobs
		SET status = ?,
		    started_at = ?,
		    lease_owner = ?,
		    lease_expires_at = ?
		WHERE id = ?
	`, JobRunning, nowStr, leaseOwner, formatTime(now.Add(leaseFor)), jobID)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return s.GetJob(ctx, jobID)
}

const jobColumns = `id, type, status, scheduled_at, started_at, finished_at,
		       payload_json, result_json, run_id, lease_owner, lease_expires_at`

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM pipeline_jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Succeed marks a job as succeeded.
func (s *Store) Succeed(ctx context.Context, jobID string, result any) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.finish(ctx, jobID, JobSucceeded, string(resultJSON))
}

// Fail marks a job as failed.
func (s *Store) Fail(ctx context.Context, jobID string, jobErr error) error {
	resultJSON, _ := json.Marshal(map[string]string{"error": jobErr.Error()})
	return s.finish(ctx, jobID, JobFailed, string(resultJSON))
}

func (s *Store) finish(ctx context.Context, jobID, status, resultJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_jobs
		SET status = ?,
		    finished_at = ?,
		    result_json = ?
		WHERE id = ?
	`, status, formatTime(s.now()), resultJSON, jobID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// ListJobs returns up to limit jobs, most recently scheduled first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM pipeline_jobs
		ORDER BY scheduled_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListRunning returns all jobs with status running.
func (s *Store) ListRunning(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM pipeline_jobs
		WHERE status = ?
		ORDER BY scheduled_at ASC, rowid ASC
	`, JobRunning)
	if err != nil {
		return nil, fmt.Errorf("query running jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListQueued returns up to limit queued jobs in claim order.
func (s *Store) ListQueued(ctx context.Context, limit int) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM pipeline_jobs
		WHERE status = ?
		ORDER BY scheduled_at ASC, rowid ASC
		LIMIT ?
	`, JobQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("query queued jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var scheduledAt, startedAt, finishedAt, leaseExpiresAt sql.NullString
	var payloadJSON, resultJSON, runID, leaseOwner sql.NullString

	err := row.Scan(
		&job.ID, &job.Type, &job.Status, &scheduledAt,
		&startedAt, &finishedAt, &payloadJSON, &resultJSON,
		&runID, &leaseOwner, &leaseExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if scheduledAt.Valid {
		job.ScheduledAt, _ = time.Parse(time.RFC3339, scheduledAt.String)
	}
	job.StartedAt = parseNullTime(startedAt)
	job.FinishedAt = parseNullTime(finishedAt)
	job.LeaseExpiresAt = parseNullTime(leaseExpiresAt)
	job.PayloadJSON = payloadJSON.String
	job.ResultJSON = resultJSON.String
	job.RunID = runID.String
	job.LeaseOwner = leaseOwner.String
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]Job, error) {
	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}

// RecordRun links jobID to the pipeline run it produced and makes runID the
// last completed run.
func (s *Store) RecordRun(ctx context.Context, jobID, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE pipeline_jobs SET run_id = ? WHERE id = ?`, runID, jobID)
	if err != nil {
		return fmt.Errorf("link job to run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job not found: %s", jobID)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO queue_state (key, value)
		VALUES (?, ?)
	`, LastRunKey, runID)
	if err != nil {
		return fmt.Errorf("record last run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LastRun returns the id of the last run a pipeline job completed, or "".
func (s *Store) LastRun(ctx context.Context) (string, error) {
	return s.GetKV(ctx, LastRunKey)
}

// GetKV retrieves a value from the key-value store.
func (s *Store) GetKV(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM queue_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get kv: %w", err)
	}
	return value, nil
}

// SetKV sets a value in the key-value store.
func (s *Store) SetKV(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO queue_state (key, value)
		VALUES (?, ?)
	`, key, value)
	if err != nil {
		return fmt.Errorf("set kv: %w", err)
	}
	return nil
}
