package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists pipeline runs, stage results, tasks, alerts and KPIs in SQLite.
type Store struct {
	DBPath string
	db     *sql.DB
	now    func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve store db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure store db dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	// One connection serialises writers from concurrent stages.
	db.SetMaxOpenConns(1)

	s := &Store{
		DBPath: absPath,
		db:     db,
		now:    time.Now,
	}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

func (s *Store) ensureSchema() error {
	schema := `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id TEXT PRIMARY KEY,
	goal TEXT NOT NULL,
	domain TEXT NOT NULL,
	team_size INTEGER NOT NULL,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	finished_at TEXT,
	error TEXT
);

CREATE TABLE IF NOT EXISTS stage_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES pipeline_runs(id),
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	result_json TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stage_results_run ON stage_results(run_id, id);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES pipeline_runs(id),
	position INTEGER NOT NULL,
	stage TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	priority INTEGER NOT NULL,
	estimated_days REAL NOT NULL,
	status TEXT NOT NULL,
	dependencies_json TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_run ON tasks(run_id, position);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES pipeline_runs(id),
	source TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	recommended_action TEXT NOT NULL,
	is_active INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_run ON alerts(run_id, created_at);

CREATE TABLE IF NOT EXISTS kpis (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES pipeline_runs(id),
	stage TEXT NOT NULL,
	name TEXT NOT NULL,
	target_value REAL NOT NULL,
	unit TEXT NOT NULL
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create store schema: %w", err)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func parseTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}
