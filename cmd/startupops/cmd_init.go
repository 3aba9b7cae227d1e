package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"startupops/internal/agents"
	"startupops/internal/audit"
	"startupops/internal/stage"
	"startupops/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a workspace with a default config and sample fixtures",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

const defaultConfigTemplate = `# startupops configuration. Environment variables STARTUPOPS_<SECTION>_<KEY>
# override these values, e.g. STARTUPOPS_AGENT_API_KEY.
throttle:
  capacity: 5

agent:
  # mock, fixture, http or codex
  kind: mock
  base_url: https://api.groq.com/openai/v1
  model: moonshotai/kimi-k2-instruct-0905
  timeout: 30s
  max_retries: 3
  temperature: 0.7
  max_tokens: 4000
  fixtures_dir: fixtures

logging:
  level: info
  format: text

daemon:
  poll_interval: 1s
  lease_for: 10m
  notify: false
`

func runInit(cmd *cobra.Command, _ []string) error {
	root, err := workspace.ResolveRoot(workspaceRoot())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	ws, err := workspace.Resolve(root)
	if err != nil {
		return err
	}

	logger := audit.NewLogger(ws.AuditDBPath)
	var finishErr error
	defer func() {
		payload := map[string]any{"workspace": ws.Root}
		if finishErr != nil {
			payload["error"] = finishErr.Error()
		}
		if err := logger.LogEvent("cli", "workspace_initialized", payload); err != nil {
			fmt.Fprintln(os.Stderr, "audit log failed:", err)
		}
	}()

	if err := ws.EnsureDirs(); err != nil {
		finishErr = err
		return finishErr
	}
	if err := writeFileIfMissing(ws.ConfigPath, defaultConfigTemplate); err != nil {
		finishErr = err
		return finishErr
	}
	if err := writeSampleFixtures(cmd.Context(), ws.FixturesDir); err != nil {
		finishErr = err
		return finishErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized workspace: %s\n", ws.Root)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  %s run --workspace %s --goal \"<what you are building>\" --domain <market> --team-size <n>\n", appName, ws.Root)
	fmt.Fprintf(out, "  %s tasks list --workspace %s\n", appName, ws.Root)
	return nil
}

// writeSampleFixtures seeds one fixture per stage from the mock agent so the
// fixture agent works out of the box. Existing fixtures are left alone.
func writeSampleFixtures(ctx context.Context, dir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mock := &agents.MockAgent{}
	input := map[string]any{"domain": "your market", "team_size": 3}
	for _, name := range stage.All() {
		if _, err := os.Stat(filepath.Join(dir, string(name)+".yml")); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat fixture: %w", err)
		}
		result, err := mock.Invoke(ctx, name, input)
		if err != nil {
			return err
		}
		if err := agents.WriteFixture(dir, name, result); err != nil {
			return err
		}
	}
	return nil
}

func writeFileIfMissing(path string, contents string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
