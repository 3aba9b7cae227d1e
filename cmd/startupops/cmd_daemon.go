package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"startupops/internal/daemon"
	"startupops/internal/logging"
	"startupops/internal/notify"
	"startupops/internal/pipeline"
)

var daemonFlags struct {
	once     bool
	agent    string
	goal     string
	domain   string
	teamSize int
	limit    int
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run queued pipeline runs in the background",
}

var daemonRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the queue and execute pipeline runs until interrupted",
	Args:  cobra.NoArgs,
	RunE:  withApp(runDaemonRun),
}

var daemonEnqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a pipeline run",
	Args:  cobra.NoArgs,
	RunE:  withApp(runDaemonEnqueue),
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show running, queued and recent jobs",
	Args:  cobra.NoArgs,
	RunE:  withApp(runDaemonStatus),
}

func init() {
	f := daemonRunCmd.Flags()
	f.BoolVar(&daemonFlags.once, "once", false, "Execute at most one job and exit")
	f.StringVar(&daemonFlags.agent, "agent", "", "Agent kind (overrides config)")

	f = daemonEnqueueCmd.Flags()
	f.StringVar(&daemonFlags.goal, "goal", "", "What the startup is building (required)")
	f.StringVar(&daemonFlags.domain, "domain", "", "Market or industry (required)")
	f.IntVar(&daemonFlags.teamSize, "team-size", 1, "Number of people on the team")
	_ = daemonEnqueueCmd.MarkFlagRequired("goal")
	_ = daemonEnqueueCmd.MarkFlagRequired("domain")

	daemonStatusCmd.Flags().IntVar(&daemonFlags.limit, "limit", 10, "Maximum number of recent jobs to show")

	daemonCmd.AddCommand(daemonRunCmd)
	daemonCmd.AddCommand(daemonEnqueueCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
}

func runDaemonRun(cmd *cobra.Command, _ []string, a *app) error {
	o, err := a.orchestrator(daemonFlags.agent)
	if err != nil {
		return err
	}
	d, err := daemon.New(daemon.Config{
		StorePath:    a.ws.QueueDBPath,
		AuditLogger:  a.audit,
		Logger:       logging.New("daemon"),
		LeaseFor:     a.cfg.Daemon.LeaseFor,
		PollInterval: a.cfg.Daemon.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()
	d.RegisterHandler(daemon.PipelineRunJob, daemon.PipelineHandler(o, d.Store, notify.New(a.cfg.Daemon.Notify)))

	out := cmd.OutOrStdout()
	if daemonFlags.once {
		claimed, err := d.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		if !claimed {
			fmt.Fprintln(out, "No jobs ready")
		}
		return nil
	}

	fmt.Fprintf(out, "Starting daemon for workspace: %s\n", a.ws.Root)
	fmt.Fprintf(out, "Poll interval: %s, Lease: %s\n", d.PollInterval, d.LeaseFor)
	return d.Run(cmd.Context())
}

func runDaemonEnqueue(cmd *cobra.Command, _ []string, a *app) error {
	s, err := daemon.Open(a.ws.QueueDBPath)
	if err != nil {
		return fmt.Errorf("open daemon store: %w", err)
	}
	defer s.Close()

	jobID, err := daemon.EnqueuePipelineRun(cmd.Context(), s, pipeline.StartupContext{
		Goal:     daemonFlags.goal,
		Domain:   daemonFlags.domain,
		TeamSize: daemonFlags.teamSize,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Enqueued job: %s\n", jobID)
	return nil
}

func runDaemonStatus(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	s, err := daemon.Open(a.ws.QueueDBPath)
	if err != nil {
		return fmt.Errorf("open daemon store: %w", err)
	}
	defer s.Close()

	running, err := s.ListRunning(ctx)
	if err != nil {
		return err
	}
	queued, err := s.ListQueued(ctx, daemonFlags.limit)
	if err != nil {
		return err
	}
	recent, err := s.ListJobs(ctx, daemonFlags.limit)
	if err != nil {
		return err
	}
	lastRun, err := s.LastRun(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running jobs: %d\n", len(running))
	fmt.Fprint(out, a.renderer.JobsTable(running))
	fmt.Fprintf(out, "Queued jobs: %d\n", len(queued))
	fmt.Fprint(out, a.renderer.JobsTable(queued))
	fmt.Fprintln(out, "Recent jobs:")
	fmt.Fprint(out, a.renderer.JobsTable(recent))
	if lastRun != "" {
		fmt.Fprintf(out, "Last completed run: %s\n", lastRun)
	}
	return nil
}
