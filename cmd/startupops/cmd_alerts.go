package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var alertsFlags struct {
	runID string
	all   bool
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List and dismiss alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the alerts of a run",
	Args:  cobra.NoArgs,
	RunE:  withApp(runAlertsList),
}

var alertsDismissCmd = &cobra.Command{
	Use:   "dismiss ALERT_ID",
	Short: "Mark an alert inactive",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runAlertsDismiss),
}

func init() {
	f := alertsListCmd.Flags()
	f.StringVar(&alertsFlags.runID, "run", "", "Run ID (default: latest run)")
	f.BoolVar(&alertsFlags.all, "all", false, "Include dismissed alerts")

	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsDismissCmd)
}

func runAlertsList(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	runID, err := a.runID(ctx, alertsFlags.runID)
	if err != nil {
		return err
	}
	alerts, err := a.store.ListAlerts(ctx, runID, !alertsFlags.all)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), a.renderer.AlertsTable(alerts))
	return nil
}

func runAlertsDismiss(cmd *cobra.Command, args []string, a *app) error {
	if err := a.store.DismissAlert(cmd.Context(), args[0]); err != nil {
		return err
	}
	if err := a.audit.LogEvent("cli", "alert_dismissed", map[string]any{"alert_id": args[0]}); err != nil {
		a.logger.Warn("audit log failed", "err", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Dismissed alert %s\n", args[0])
	return nil
}
