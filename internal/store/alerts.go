package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"startupops/internal/drift"
	"startupops/internal/stage"
)

const (
	SourceDrift   = "drift"
	SourceAdvisor = "advisor"
)

// StoredAlert is an alert with its storage metadata.
type StoredAlert struct {
	drift.Alert
	ID        string
	RunID     string
	Source    string
	CreatedAt time.Time
}

// PersistAlerts stores alerts raised by execution health analysis.
func (s *Store) PersistAlerts(ctx context.Context, runID string, alerts []drift.Alert) error {
	return s.insertAlerts(ctx, runID, SourceDrift, alerts)
}

// PersistAdvisorAlerts stores the alerts the advisor stage raised.
func (s *Store) PersistAdvisorAlerts(ctx context.Context, runID string, alerts []stage.AdvisorAlert) error {
	converted := make([]drift.Alert, 0, len(alerts))
	for _, a := range alerts {
		converted = append(converted, drift.Alert{
			Severity:          drift.ParseSeverity(a.Severity),
			Message:           a.Message,
			RecommendedAction: a.RecommendedAction,
			Active:            true,
		})
	}
	return s.insertAlerts(ctx, runID, SourceAdvisor, converted)
}

func (s *Store) insertAlerts(ctx context.Context, runID, source string, alerts []drift.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.timestamp()
	for _, a := range alerts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO alerts (id, run_id, source, severity, message, recommended_action, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), runID, source, string(a.Severity), a.Message, a.RecommendedAction, a.Active, now)
		if err != nil {
			return fmt.Errorf("insert alert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListAlerts returns a run's alerts in creation order.
func (s *Store) ListAlerts(ctx context.Context, runID string, activeOnly bool) ([]StoredAlert, error) {
	query := `
		SELECT id, run_id, source, severity, message, recommended_action, is_active, created_at
		FROM alerts
		WHERE run_id = ?`
	if activeOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []StoredAlert
	for rows.Next() {
		var a StoredAlert
		var severity, createdAt string
		if err := rows.Scan(&a.ID, &a.RunID, &a.Source, &severity, &a.Message, &a.RecommendedAction, &a.Active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Severity = drift.Severity(severity)
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

// DismissAlert marks an alert inactive.
func (s *Store) DismissAlert(ctx context.Context, alertID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE alerts SET is_active = 0 WHERE id = ?", alertID)
	if err != nil {
		return fmt.Errorf("dismiss alert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &NotFoundError{Entity: "alert", ID: alertID}
	}
	return nil
}

// PersistKPIs stores the KPIs proposed for a run.
func (s *Store) PersistKPIs(ctx context.Context, runID string, kpis []stage.KPI) error {
	if len(kpis) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, k := range kpis {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kpis (run_id, stage, name, target_value, unit)
			VALUES (?, ?, ?, ?, ?)
		`, runID, string(k.Stage), k.Name, k.TargetValue, k.Unit)
		if err != nil {
			return fmt.Errorf("insert kpi: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListKPIs returns a run's KPIs in insertion order.
func (s *Store) ListKPIs(ctx context.Context, runID string) ([]stage.KPI, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, name, target_value, unit
		FROM kpis
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query kpis: %w", err)
	}
	defer rows.Close()

	var kpis []stage.KPI
	for rows.Next() {
		var k stage.KPI
		var name string
		if err := rows.Scan(&name, &k.Name, &k.TargetValue, &k.Unit); err != nil {
			return nil, fmt.Errorf("scan kpi: %w", err)
		}
		k.Stage = stage.Name(name)
		kpis = append(kpis, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kpis: %w", err)
	}
	return kpis, nil
}
