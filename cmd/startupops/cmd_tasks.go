package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"startupops/internal/drift"
	"startupops/internal/logging"
	"startupops/internal/report"
	"startupops/internal/taskgraph"
)

var tasksFlags struct {
	runID string
	plain bool
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect the task graph of a run",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tasks of a run in plan order",
	Args:  cobra.NoArgs,
	RunE:  withApp(runTasksList),
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Change a single task",
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update TASK_ID STATUS",
	Short: "Set a task's status (pending, in_progress, completed) and re-evaluate health",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runTaskUpdate),
}

func init() {
	f := tasksListCmd.Flags()
	f.StringVar(&tasksFlags.runID, "run", "", "Run ID (default: latest run)")
	f.BoolVar(&tasksFlags.plain, "plain", false, "Print the plan as plain text instead of a table")
	tasksCmd.AddCommand(tasksListCmd)

	taskCmd.AddCommand(taskUpdateCmd)
}

func runTasksList(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	runID, err := a.runID(ctx, tasksFlags.runID)
	if err != nil {
		return err
	}
	tasks, err := a.store.ListTasks(ctx, runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if tasksFlags.plain {
		fmt.Fprint(out, report.RenderPlan(tasks))
		return nil
	}
	fmt.Fprintf(out, "Run: %s\n", runID)
	fmt.Fprint(out, a.renderer.TasksTable(tasks))
	return nil
}

func runTaskUpdate(cmd *cobra.Command, args []string, a *app) error {
	status, err := taskgraph.ParseStatus(args[1])
	if err != nil {
		return err
	}
	m := &drift.Monitor{Store: a.store, Audit: a.audit, Logger: logging.New("drift")}
	health, alerts, err := m.OnTaskStatusChanged(cmd.Context(), args[0], status)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task %s is now %s\n", args[0], status)
	fmt.Fprint(out, a.renderer.HealthSummary(health, nil))
	if len(alerts) > 0 {
		fmt.Fprintf(out, "%d new alert(s); see '%s alerts list'\n", len(alerts), appName)
	}
	return nil
}
