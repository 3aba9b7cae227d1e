package audit

import (
	"path/filepath"
	"testing"
)

func TestLogEventAndList(t *testing.T) {
	logger := NewLogger(filepath.Join(t.TempDir(), "nested", "audit.sqlite"))

	if err := logger.LogEvent("pipeline", "pipeline_started", map[string]any{"run_id": "r1"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if err := logger.LogEvent("pipeline", "pipeline_finished", map[string]any{"run_id": "r1"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	events, err := logger.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Type != "pipeline_finished" || events[1].Type != "pipeline_started" {
		t.Fatalf("events not newest first: %+v", events)
	}
	if events[0].PayloadJSON != `{"run_id":"r1"}` {
		t.Fatalf("payload = %s", events[0].PayloadJSON)
	}
	if events[0].Timestamp.IsZero() {
		t.Fatalf("timestamp not parsed")
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	var logger *Logger
	if err := logger.LogEvent("x", "y", nil); err != nil {
		t.Fatalf("nil logger LogEvent: %v", err)
	}
	events, err := logger.List(5)
	if err != nil || events != nil {
		t.Fatalf("nil logger List = %v, %v", events, err)
	}
}

func TestLogEventRejectsUnmarshalablePayload(t *testing.T) {
	logger := NewLogger(filepath.Join(t.TempDir(), "audit.sqlite"))
	if err := logger.LogEvent("x", "y", map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatalf("expected marshal error")
	}
}
