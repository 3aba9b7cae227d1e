package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const appName = "startupops"

// version is set at build time via -ldflags.
var version = "dev"

var globalFlags struct {
	workspace string
	config    string
	logLevel  string
	logFormat string
	format    string
	noColor   bool
}

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Multi-agent startup planning with execution drift tracking",
	Long: "startupops turns a startup goal into a product, tech, marketing and finance plan,\n" +
		"builds a dependency-ordered task graph from it and tracks execution health as\n" +
		"tasks progress.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&globalFlags.workspace, "workspace", "", "Path to workspace root (default $STARTUPOPS_WORKSPACE or current directory)")
	f.StringVar(&globalFlags.config, "config", "", "Path to config file (default <workspace>/startupops.yaml)")
	f.StringVar(&globalFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	f.StringVar(&globalFlags.logFormat, "log-format", "", "Log format: text or json (overrides config)")
	f.StringVar(&globalFlags.format, "format", "table", "Table format: table or markdown")
	f.BoolVar(&globalFlags.noColor, "no-color", false, "Disable coloured output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.Version = version
}

func main() {
	// Interrupting a run stops new stages; in-flight ones finish and are saved.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
