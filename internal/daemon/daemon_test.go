package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"startupops/internal/agents"
	"startupops/internal/audit"
	"startupops/internal/pipeline"
	"startupops/internal/store"
	"startupops/internal/throttle"
)

func openQueue(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "queue.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newDaemon(t *testing.T) *Daemon {
	t.Helper()
	d, err := New(Config{
		StorePath:   filepath.Join(t.TempDir(), "queue.sqlite"),
		AuditLogger: audit.NewLogger(filepath.Join(t.TempDir(), "audit.sqlite")),
		LeaseOwner:  "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestClaimNextOrdersBySchedule(t *testing.T) {
	ctx := context.Background()
	s := openQueue(t)
	now := time.Now()

	later, err := s.Enqueue(ctx, "a", now.Add(-time.Minute), map[string]int{"n": 2})
	require.NoError(t, err)
	earlier, err := s.Enqueue(ctx, "a", now.Add(-time.Hour), map[string]int{"n": 1})
	require.NoError(t, err)
	_, err = s.Enqueue(ctx, "a", now.Add(time.Hour), nil)
	require.NoError(t, err)

	queued, err := s.ListQueued(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, queued, 3)

	job, err := s.ClaimNext(ctx, now, "owner", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, earlier, job.ID)
	assert.Equal(t, JobRunning, job.Status)
	assert.Equal(t, "owner", job.LeaseOwner)
	assert.JSONEq(t, `{"n":1}`, job.PayloadJSON)

	job, err = s.ClaimNext(ctx, now, "owner", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, later, job.ID)

	job, err = s.ClaimNext(ctx, now, "owner", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, job, "future job must not be claimable yet")

	running, err := s.ListRunning(ctx)
	require.NoError(t, err)
	assert.Len(t, running, 2)
}

func TestClaimNextReclaimsExpiredLease(t *testing.T) {
	ctx := context.Background()
	s := openQueue(t)
	now := time.Now()

	id, err := s.Enqueue(ctx, "a", now.Add(-time.Minute), nil)
	require.NoError(t, err)

	job, err := s.ClaimNext(ctx, now, "crashed", -time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)

	job, err = s.ClaimNext(ctx, now, "fresh", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "fresh", job.LeaseOwner)
}

func TestSucceedAndFail(t *testing.T) {
	ctx := context.Background()
	s := openQueue(t)

	ok, err := s.Enqueue(ctx, "a", time.Now(), nil)
	require.NoError(t, err)
	bad, err := s.Enqueue(ctx, "a", time.Now(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Succeed(ctx, ok, map[string]string{"run_id": "r"}))
	require.NoError(t, s.Fail(ctx, bad, errors.New("boom")))

	job, err := s.GetJob(ctx, ok)
	require.NoError(t, err)
	assert.Equal(t, JobSucceeded, job.Status)
	assert.NotNil(t, job.FinishedAt)
	assert.JSONEq(t, `{"run_id":"r"}`, job.ResultJSON)

	job, err = s.GetJob(ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, job.Status)
	assert.JSONEq(t, `{"error":"boom"}`, job.ResultJSON)

	jobs, err := s.ListJobs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	_, err = s.GetJob(ctx, "missing")
	assert.Error(t, err)
}

func TestKV(t *testing.T) {
	ctx := context.Background()
	s := openQueue(t)

	v, err := s.GetKV(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetKV(ctx, "k", "1"))
	require.NoError(t, s.SetKV(ctx, "k", "2"))
	v, err = s.GetKV(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestRunOnceWithoutJobs(t *testing.T) {
	d := newDaemon(t)
	claimed, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRunOnceFailsUnknownJobType(t *testing.T) {
	ctx := context.Background()
	d := newDaemon(t)
	id, err := d.Store.Enqueue(ctx, "mystery", time.Now().Add(-time.Second), nil)
	require.NoError(t, err)

	claimed, err := d.RunOnce(ctx)
	assert.True(t, claimed)
	require.Error(t, err)

	job, err := d.Store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, job.Status)
	assert.Contains(t, job.ResultJSON, "no handler")
}

func TestRunOnceHandlerError(t *testing.T) {
	ctx := context.Background()
	d := newDaemon(t)
	d.RegisterHandler("flaky", func(context.Context, *Job) (any, error) {
		return nil, errors.New("flaked")
	})
	id, err := d.Store.Enqueue(ctx, "flaky", time.Now().Add(-time.Second), nil)
	require.NoError(t, err)

	_, err = d.RunOnce(ctx)
	require.EqualError(t, err, "flaked")

	job, err := d.Store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, job.Status)
}

func TestPipelineRunJob(t *testing.T) {
	ctx := context.Background()
	d := newDaemon(t)

	st, err := store.Open(filepath.Join(t.TempDir(), "startupops.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	th, err := throttle.New(throttle.DefaultCapacity)
	require.NoError(t, err)
	o, err := pipeline.New(pipeline.Options{Agent: &agents.MockAgent{}, Throttle: th, Store: st})
	require.NoError(t, err)
	d.RegisterHandler(PipelineRunJob, PipelineHandler(o, d.Store, nil))

	_, err = EnqueuePipelineRun(ctx, d.Store, pipeline.StartupContext{Goal: "tiny", Domain: "x", TeamSize: 0})
	require.Error(t, err)

	id, err := EnqueuePipelineRun(ctx, d.Store, pipeline.StartupContext{
		Goal:     "Launch a scheduling tool for clinics",
		Domain:   "healthtech",
		TeamSize: 2,
	})
	require.NoError(t, err)

	claimed, err := d.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, claimed)

	job, err := d.Store.GetJob(ctx, id)
	require.NoError(t, err)
	require.Equal(t, JobSucceeded, job.Status)

	summary, err := job.Summary()
	require.NoError(t, err)
	assert.Equal(t, 17, summary.TaskCount)
	assert.Equal(t, "completed", summary.Stages["advisor"])
	assert.Equal(t, summary.RunID, job.RunID)

	last, err := d.Store.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, last)

	run, err := st.GetRun(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, run.Status)
}

func TestEnqueuePipelineRunStoresTypedRequest(t *testing.T) {
	ctx := context.Background()
	s := openQueue(t)
	sc := pipeline.StartupContext{Goal: "Launch a scheduling tool for clinics", Domain: "healthtech", TeamSize: 4}

	id, err := EnqueuePipelineRun(ctx, s, sc)
	require.NoError(t, err)
	job, err := s.GetJob(ctx, id)
	require.NoError(t, err)

	req, err := job.PipelineRun()
	require.NoError(t, err)
	assert.Equal(t, sc, req.Context)
	assert.False(t, req.RequestedAt.IsZero())

	_, err = job.Summary()
	assert.Error(t, err, "a queued job has no summary")
}

func TestPipelineRunRejectsMalformedPayload(t *testing.T) {
	valid := `{"context":{"goal":"Launch a scheduling tool for clinics","domain":"healthtech","team_size":2}}`
	tests := []struct {
		name    string
		job     Job
		wantErr string
	}{
		{name: "valid", job: Job{ID: "j", Type: PipelineRunJob, PayloadJSON: valid}},
		{name: "wrong type", job: Job{ID: "j", Type: "other", PayloadJSON: valid}, wantErr: "want pipeline_run"},
		{name: "not json", job: Job{ID: "j", Type: PipelineRunJob, PayloadJSON: "{"}, wantErr: "parse pipeline run request"},
		{name: "bare context", job: Job{ID: "j", Type: PipelineRunJob, PayloadJSON: `{"goal":"x"}`}, wantErr: "unknown field"},
		{name: "invalid context", job: Job{ID: "j", Type: PipelineRunJob, PayloadJSON: `{"context":{"goal":"short","domain":"x","team_size":0}}`}, wantErr: "team_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.job.PipelineRun()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPipelineHandlerFailsMalformedJob(t *testing.T) {
	ctx := context.Background()
	d := newDaemon(t)
	// The orchestrator is never reached for a payload that does not decode.
	d.RegisterHandler(PipelineRunJob, PipelineHandler(nil, d.Store, nil))

	id, err := d.Store.Enqueue(ctx, PipelineRunJob, time.Now().Add(-time.Second), map[string]string{"goal": "x"})
	require.NoError(t, err)

	claimed, err := d.RunOnce(ctx)
	assert.True(t, claimed)
	require.Error(t, err)

	job, err := d.Store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, job.Status)
	assert.Empty(t, job.RunID)
	assert.Contains(t, job.ResultJSON, "parse pipeline run request")

	last, err := d.Store.LastRun(ctx)
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestRecordRun(t *testing.T) {
	ctx := context.Background()
	s := openQueue(t)

	first, err := s.Enqueue(ctx, PipelineRunJob, time.Now(), nil)
	require.NoError(t, err)
	second, err := s.Enqueue(ctx, PipelineRunJob, time.Now(), nil)
	require.NoError(t, err)

	require.NoError(t, s.RecordRun(ctx, first, "run-1"))
	require.NoError(t, s.RecordRun(ctx, second, "run-2"))
	assert.Error(t, s.RecordRun(ctx, "missing", "run-3"))

	job, err := s.GetJob(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "run-1", job.RunID)

	last, err := s.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", last)
}
