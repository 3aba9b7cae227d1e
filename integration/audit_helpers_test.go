package integration_test

import (
	"database/sql"
	"encoding/json"
	"testing"

	_ "modernc.org/sqlite"
)

func openAuditDB(t *testing.T, dbPath string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open audit db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func loadAuditTypes(t *testing.T, dbPath string) map[string]int {
	t.Helper()
	rows, err := openAuditDB(t, dbPath).Query("SELECT type, COUNT(*) FROM events GROUP BY type")
	if err != nil {
		t.Fatalf("query audit events: %v", err)
	}
	defer func() { _ = rows.Close() }()

	types := make(map[string]int)
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			t.Fatalf("scan audit event: %v", err)
		}
		types[eventType] = count
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate audit events: %v", err)
	}
	return types
}

// loadAuditPayloads returns the decoded payloads of one event type in write
// order.
func loadAuditPayloads(t *testing.T, dbPath, eventType string) []map[string]any {
	t.Helper()
	rows, err := openAuditDB(t, dbPath).Query("SELECT payload_json FROM events WHERE type = ? ORDER BY id", eventType)
	if err != nil {
		t.Fatalf("query %s payloads: %v", eventType, err)
	}
	defer func() { _ = rows.Close() }()

	var payloads []map[string]any
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			t.Fatalf("scan payload: %v", err)
		}
		payload := map[string]any{}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			t.Fatalf("decode %s payload %q: %v", eventType, raw, err)
		}
		payloads = append(payloads, payload)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate payloads: %v", err)
	}
	return payloads
}

func requireAuditEvents(t *testing.T, dbPath string, want []string) {
	t.Helper()
	types := loadAuditTypes(t, dbPath)
	for _, eventType := range want {
		if types[eventType] == 0 {
			t.Fatalf("missing audit event %s in %s", eventType, dbPath)
		}
	}
}
