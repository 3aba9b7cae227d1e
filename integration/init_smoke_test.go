package integration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"startupops/integration/harness"
)

func TestInitSmoke(t *testing.T) {
	binPath := harness.BuildBinary(t)
	runDir := t.TempDir()
	workspaceRoot := filepath.Join(t.TempDir(), "workspace-init")

	res := harness.MustRun(t, binPath, runDir, "init", "--workspace", workspaceRoot)
	if !strings.Contains(res.Stdout, "Initialized workspace") {
		t.Fatalf("expected init confirmation\n%s", res.Output())
	}

	paths := []string{
		filepath.Join(workspaceRoot, "startupops.yaml"),
		filepath.Join(workspaceRoot, "data"),
		filepath.Join(workspaceRoot, "runs"),
		filepath.Join(workspaceRoot, "prompts"),
		filepath.Join(workspaceRoot, "fixtures", "product.yml"),
		filepath.Join(workspaceRoot, "fixtures", "tech.yml"),
		filepath.Join(workspaceRoot, "fixtures", "marketing.yml"),
		filepath.Join(workspaceRoot, "fixtures", "finance.yml"),
		filepath.Join(workspaceRoot, "fixtures", "advisor.yml"),
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to exist: %v", path, err)
		}
	}

	auditPath := filepath.Join(workspaceRoot, "data", "audit.sqlite")
	requireAuditEvents(t, auditPath, []string{"workspace_initialized"})

	// A second init keeps edited files.
	configPath := filepath.Join(workspaceRoot, "startupops.yaml")
	if err := os.WriteFile(configPath, []byte("throttle:\n  capacity: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	harness.MustRun(t, binPath, runDir, "init", "--workspace", workspaceRoot)
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(data) != "throttle:\n  capacity: 1\n" {
		t.Fatalf("init overwrote existing config:\n%s", data)
	}
	if n := loadAuditTypes(t, auditPath)["workspace_initialized"]; n != 2 {
		t.Fatalf("workspace_initialized events = %d, want 2", n)
	}
}
