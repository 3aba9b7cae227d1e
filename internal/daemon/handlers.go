package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"startupops/internal/logging"
	"startupops/internal/notify"
	"startupops/internal/pipeline"
)

// PipelineRunJob is the job type that executes one full pipeline run.
const PipelineRunJob = "pipeline_run"

// LastRunKey holds the id of the last pipeline run the daemon completed.
const LastRunKey = "last_pipeline_run"

// PipelineRunRequest is the payload of a pipeline_run job.
type PipelineRunRequest struct {
	Context     pipeline.StartupContext `json:"context"`
	RequestedAt time.Time               `json:"requested_at"`
}

// PipelineRunSummary is the stored result of a pipeline_run job.
type PipelineRunSummary struct {
	RunID        string            `json:"run_id"`
	TaskCount    int               `json:"task_count"`
	HealthScore  float64           `json:"health_score"`
	HealthStatus string            `json:"health_status"`
	Stages       map[string]string `json:"stages"`
}

// PipelineRun decodes the request carried by a pipeline_run job. Unknown
// fields and an invalid startup context are rejected.
func (j *Job) PipelineRun() (PipelineRunRequest, error) {
	var req PipelineRunRequest
	if j.Type != PipelineRunJob {
		return req, fmt.Errorf("job %s has type %s, want %s", j.ID, j.Type, PipelineRunJob)
	}
	dec := json.NewDecoder(strings.NewReader(j.PayloadJSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("parse pipeline run request: %w", err)
	}
	if err := req.Context.Validate(); err != nil {
		return req, fmt.Errorf("job %s: %w", j.ID, err)
	}
	return req, nil
}

// Summary decodes the result of a succeeded pipeline_run job.
func (j *Job) Summary() (PipelineRunSummary, error) {
	var summary PipelineRunSummary
	if j.Type != PipelineRunJob || j.Status != JobSucceeded {
		return summary, fmt.Errorf("job %s has no run summary (%s, %s)", j.ID, j.Type, j.Status)
	}
	if err := json.Unmarshal([]byte(j.ResultJSON), &summary); err != nil {
		return summary, fmt.Errorf("parse run summary: %w", err)
	}
	return summary, nil
}

// EnqueuePipelineRun queues a pipeline run for sc after validating it.
func EnqueuePipelineRun(ctx context.Context, s *Store, sc pipeline.StartupContext) (string, error) {
	if err := sc.Validate(); err != nil {
		return "", err
	}
	now := s.now()
	return s.Enqueue(ctx, PipelineRunJob, now, PipelineRunRequest{Context: sc, RequestedAt: now.UTC()})
}

// PipelineHandler runs the startup context carried in a job payload through o.
// n may be nil.
func PipelineHandler(o *pipeline.Orchestrator, s *Store, n *notify.Notifier) HandlerFunc {
	return func(ctx context.Context, job *Job) (any, error) {
		req, err := job.PipelineRun()
		if err != nil {
			return nil, err
		}

		out, err := o.Run(ctx, req.Context)
		if err != nil {
			title, message := notify.FormatRunFailed(err)
			sendNotification(n, title, message)
			return nil, err
		}

		summary := PipelineRunSummary{
			RunID:        out.RunID,
			TaskCount:    len(out.Tasks),
			HealthScore:  out.Health.Score,
			HealthStatus: string(out.Health.Status),
			Stages:       make(map[string]string, len(out.Statuses)),
		}
		for name, status := range out.Statuses {
			summary.Stages[string(name)] = status
		}
		if s != nil {
			if err := s.RecordRun(ctx, job.ID, out.RunID); err != nil {
				return nil, err
			}
		}
		title, message := notify.FormatRunFinished(out.RunID, len(out.Tasks), out.Health)
		sendNotification(n, title, message)
		return summary, nil
	}
}

func sendNotification(n *notify.Notifier, title, message string) {
	if err := n.Send(title, message); err != nil {
		logging.New("daemon").Warn("notification failed", "error", err)
	}
}
