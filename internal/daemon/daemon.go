package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"startupops/internal/audit"
)

// HandlerFunc executes one claimed job and returns its result.
type HandlerFunc func(ctx context.Context, job *Job) (any, error)

// Daemon is a long-running process that claims queued pipeline runs and
// executes them one at a time.
type Daemon struct {
	Store        *Store
	Handlers     map[string]HandlerFunc
	AuditLogger  *audit.Logger
	Logger       *slog.Logger
	LeaseOwner   string
	LeaseFor     time.Duration
	PollInterval time.Duration
}

// Config holds daemon configuration.
type Config struct {
	StorePath    string
	AuditLogger  *audit.Logger
	Logger       *slog.Logger
	LeaseOwner   string
	LeaseFor     time.Duration
	PollInterval time.Duration
}

// New opens the queue store and returns a daemon with no handlers.
func New(cfg Config) (*Daemon, error) {
	store, err := Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if cfg.LeaseOwner == "" {
		hostname, _ := os.Hostname()
		cfg.LeaseOwner = fmt.Sprintf("daemon-%s-%d", hostname, os.Getpid())
	}
	if cfg.LeaseFor == 0 {
		cfg.LeaseFor = 10 * time.Minute
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Daemon{
		Store:        store,
		Handlers:     map[string]HandlerFunc{},
		AuditLogger:  cfg.AuditLogger,
		Logger:       logger,
		LeaseOwner:   cfg.LeaseOwner,
		LeaseFor:     cfg.LeaseFor,
		PollInterval: cfg.PollInterval,
	}, nil
}

// RegisterHandler registers a handler for a specific job type.
func (d *Daemon) RegisterHandler(jobType string, handler HandlerFunc) {
	d.Handlers[jobType] = handler
}

// Run polls for jobs until ctx is done or the process receives SIGINT or
// SIGTERM. A job that has started is always run to completion.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d.logEvent("daemon_started", map[string]any{
		"lease_owner":   d.LeaseOwner,
		"lease_for":     d.LeaseFor.String(),
		"poll_interval": d.PollInterval.String(),
	})
	d.Logger.Info("daemon started", "lease_owner", d.LeaseOwner, "poll_interval", d.PollInterval)

	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logEvent("daemon_stopped", map[string]any{"lease_owner": d.LeaseOwner})
			d.Logger.Info("daemon stopped")
			return nil
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				d.Logger.Error("job execution failed", "err", err)
			}
		}
	}
}

// RunOnce claims and executes at most one job. It reports whether a job was
// claimed.
func (d *Daemon) RunOnce(ctx context.Context) (bool, error) {
	job, err := d.Store.ClaimNext(ctx, time.Now(), d.LeaseOwner, d.LeaseFor)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	// The job outlives a shutdown request; bookkeeping must too.
	jobCtx := context.WithoutCancel(ctx)
	logger := d.Logger.With("job_id", job.ID, "job_type", job.Type)
	started := map[string]any{
		"job_id":   job.ID,
		"job_type": job.Type,
		"payload":  job.PayloadJSON,
	}
	if req, err := job.PipelineRun(); err == nil {
		started["goal"] = req.Context.Goal
		started["domain"] = req.Context.Domain
		logger = logger.With("domain", req.Context.Domain)
	}
	logger.Info("job started")
	d.logEvent("job_started", started)

	handler, ok := d.Handlers[job.Type]
	if !ok {
		return true, d.fail(jobCtx, job, fmt.Errorf("no handler for job type: %s", job.Type))
	}

	result, execErr := handler(jobCtx, job)
	if execErr != nil {
		return true, d.fail(jobCtx, job, execErr)
	}
	if err := d.Store.Succeed(jobCtx, job.ID, result); err != nil {
		return true, fmt.Errorf("mark job succeeded: %w", err)
	}
	succeeded := map[string]any{
		"job_id":   job.ID,
		"job_type": job.Type,
		"result":   result,
	}
	if summary, ok := result.(PipelineRunSummary); ok {
		succeeded["run_id"] = summary.RunID
		logger = logger.With("run_id", summary.RunID, "health", summary.HealthStatus)
	}
	logger.Info("job succeeded")
	d.logEvent("job_succeeded", succeeded)
	return true, nil
}

func (d *Daemon) fail(ctx context.Context, job *Job, jobErr error) error {
	if err := d.Store.Fail(ctx, job.ID, jobErr); err != nil {
		d.Logger.Error("mark job failed", "job_id", job.ID, "err", err)
	}
	d.logEvent("job_failed", map[string]any{
		"job_id":   job.ID,
		"job_type": job.Type,
		"error":    jobErr.Error(),
	})
	return jobErr
}

func (d *Daemon) logEvent(eventType string, payload any) {
	if err := d.AuditLogger.LogEvent("daemon", eventType, payload); err != nil {
		d.Logger.Warn("audit log failed", "event", eventType, "err", err)
	}
}

// Close closes the daemon's store.
func (d *Daemon) Close() error {
	return d.Store.Close()
}
