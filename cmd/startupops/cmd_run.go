package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"startupops/internal/pipeline"
	"startupops/internal/stage"
	"startupops/internal/store"
)

var runFlags struct {
	goal     string
	domain   string
	teamSize int
	agent    string
	json     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the planning pipeline for a startup goal",
	Args:  cobra.NoArgs,
	RunE:  withApp(runRun),
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.goal, "goal", "", "What the startup is building (required)")
	f.StringVar(&runFlags.domain, "domain", "", "Market or industry (required)")
	f.IntVar(&runFlags.teamSize, "team-size", 1, "Number of people on the team")
	f.StringVar(&runFlags.agent, "agent", "", "Agent kind: mock, fixture, http or codex (overrides config)")
	f.BoolVar(&runFlags.json, "json", false, "Print the run outcome as JSON")

	_ = runCmd.MarkFlagRequired("goal")
	_ = runCmd.MarkFlagRequired("domain")
}

func runRun(cmd *cobra.Command, _ []string, a *app) error {
	o, err := a.orchestrator(runFlags.agent)
	if err != nil {
		return err
	}

	out, err := o.Run(cmd.Context(), pipeline.StartupContext{
		Goal:     runFlags.goal,
		Domain:   runFlags.domain,
		TeamSize: runFlags.teamSize,
	})
	if out != nil && err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Run %s stopped early; completed stages were saved.\n", out.RunID)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if runFlags.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "Run: %s (%s)\n\n", out.RunID, out.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, "Stages:")
	for _, name := range stage.All() {
		status := out.Statuses[name]
		line := fmt.Sprintf("  %-10s %s", name, status)
		if status == store.StageFailed {
			line += ": " + out.Results[name].Error()
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Tasks: %d\n", len(out.Tasks))
	fmt.Fprint(w, a.renderer.HealthSummary(out.Health, nil))

	alerts, err := a.store.ListAlerts(cmd.Context(), out.RunID, true)
	if err != nil {
		return err
	}
	fmt.Fprint(w, a.renderer.AlertsTable(alerts))
	return nil
}
