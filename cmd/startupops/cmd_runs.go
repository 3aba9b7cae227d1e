package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"startupops/internal/report"
)

var runsFlags struct {
	limit int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  withApp(runRunsList),
}

var runsShowCmd = &cobra.Command{
	Use:   "show [RUN_ID]",
	Short: "Show the recorded stage results and KPIs of a run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  withApp(runRunsShow),
}

var runsDiffCmd = &cobra.Command{
	Use:   "diff RUN_A RUN_B",
	Short: "Show a unified diff between the plans of two runs",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runRunsDiff),
}

func init() {
	runsListCmd.Flags().IntVar(&runsFlags.limit, "limit", 20, "Maximum number of runs to list")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDiffCmd)
}

func runRunsList(cmd *cobra.Command, _ []string, a *app) error {
	runs, err := a.store.ListRuns(cmd.Context(), runsFlags.limit)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), a.renderer.RunsTable(runs))
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string, a *app) error {
	ctx := cmd.Context()
	id := ""
	if len(args) == 1 {
		id = args[0]
	}
	runID, err := a.runID(ctx, id)
	if err != nil {
		return err
	}
	run, err := a.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	records, err := a.store.ListStageResults(ctx, runID)
	if err != nil {
		return err
	}
	kpis, err := a.store.ListKPIs(ctx, runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:    %s\n", run.ID)
	fmt.Fprintf(out, "Status: %s\n", run.Status)
	fmt.Fprintf(out, "Goal:   %s\n", run.Goal)
	fmt.Fprintf(out, "Domain: %s (team of %d)\n", run.Domain, run.TeamSize)
	if run.Error != "" {
		fmt.Fprintf(out, "Error:  %s\n", run.Error)
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, a.renderer.StagesTable(records))
	if len(kpis) > 0 {
		fmt.Fprintln(out, "KPIs:")
		for _, k := range kpis {
			fmt.Fprintf(out, "  [%s] %s: %g %s\n", k.Stage, k.Name, k.TargetValue, k.Unit)
		}
	}
	return nil
}

func runRunsDiff(cmd *cobra.Command, args []string, a *app) error {
	ctx := cmd.Context()
	before, err := a.store.ListTasks(ctx, args[0])
	if err != nil {
		return err
	}
	after, err := a.store.ListTasks(ctx, args[1])
	if err != nil {
		return err
	}
	diff, err := report.DiffRuns(args[0], before, args[1], after)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if diff == "" {
		fmt.Fprintln(out, "Plans are identical")
		return nil
	}
	fmt.Fprint(out, diff)
	return nil
}
