package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"startupops/internal/drift"
	"startupops/internal/logging"
)

var healthFlags struct {
	runID string
	json  bool
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the execution health of a run",
	Args:  cobra.NoArgs,
	RunE:  withApp(runHealth),
}

func init() {
	f := healthCmd.Flags()
	f.StringVar(&healthFlags.runID, "run", "", "Run ID (default: latest run)")
	f.BoolVar(&healthFlags.json, "json", false, "Print health as JSON")
}

func runHealth(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	runID, err := a.runID(ctx, healthFlags.runID)
	if err != nil {
		return err
	}

	m := &drift.Monitor{Store: a.store, Audit: a.audit, Logger: logging.New("drift")}
	health, blocked, err := m.Health(ctx, runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if healthFlags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"run_id":  runID,
			"health":  health,
			"blocked": blocked,
		})
	}
	fmt.Fprintf(out, "Run: %s\n", runID)
	fmt.Fprint(out, a.renderer.HealthSummary(health, blocked))
	return nil
}
