package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var auditFlags struct {
	limit int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent audit events, newest first",
	Args:  cobra.NoArgs,
	RunE:  withApp(runAuditList),
}

func init() {
	auditListCmd.Flags().IntVar(&auditFlags.limit, "limit", 50, "Maximum number of events")
	auditCmd.AddCommand(auditListCmd)
}

func runAuditList(cmd *cobra.Command, _ []string, a *app) error {
	events, err := a.audit.List(auditFlags.limit)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), a.renderer.AuditTable(events))
	return nil
}
