// Package report renders plans, health and history for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"startupops/internal/audit"
	"startupops/internal/daemon"
	"startupops/internal/drift"
	"startupops/internal/store"
	"startupops/internal/taskgraph"
)

// Renderer formats domain values as tables.
type Renderer struct {
	mode  Mode
	color bool
}

// New returns a Renderer. Colour is only applied in ASCII mode.
func New(mode Mode, colorize bool) *Renderer {
	return &Renderer{mode: mode, color: colorize && mode == ASCII}
}

func (r *Renderer) paint(s string, attrs ...color.Attribute) string {
	if !r.color || len(attrs) == 0 {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

func (r *Renderer) taskStatus(s taskgraph.Status) string {
	switch s {
	case taskgraph.Completed:
		return r.paint(string(s), color.FgGreen)
	case taskgraph.InProgress:
		return r.paint(string(s), color.FgYellow)
	}
	return string(s)
}

func (r *Renderer) healthStatus(s drift.HealthStatus) string {
	switch s {
	case drift.Healthy:
		return r.paint(string(s), color.FgGreen, color.Bold)
	case drift.AtRisk:
		return r.paint(string(s), color.FgYellow, color.Bold)
	case drift.Critical:
		return r.paint(string(s), color.FgRed, color.Bold)
	}
	return string(s)
}

func (r *Renderer) severity(s drift.Severity) string {
	switch s {
	case drift.SeverityCritical:
		return r.paint(string(s), color.FgRed)
	case drift.SeverityWarning:
		return r.paint(string(s), color.FgYellow)
	}
	return r.paint(string(s), color.FgCyan)
}

func (r *Renderer) outcome(s string) string {
	switch s {
	case store.StageCompleted, daemon.JobSucceeded:
		return r.paint(s, color.FgGreen)
	case store.StageFailed, store.RunCancelled:
		return r.paint(s, color.FgRed)
	case store.RunRunning, daemon.JobQueued:
		return r.paint(s, color.FgYellow)
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

// TasksTable lists tasks in plan order with their dependencies by position.
func (r *Renderer) TasksTable(tasks []taskgraph.Task) string {
	if len(tasks) == 0 {
		return "No tasks found\n"
	}
	labels := planLabels(tasks)
	tb := newTable(r.mode)
	tb.header("#", "ID", "Stage", "Title", "Pri", "Days", "Status", "After")
	totalDays := 0.0
	for i, t := range tasks {
		tb.row(i+1, t.ID, t.Stage, t.Title, t.Priority, t.EstimatedDays, r.taskStatus(t.Status), dependencyLabels(t, labels))
		totalDays += t.EstimatedDays
	}
	tb.footer("", "", "", fmt.Sprintf("%d tasks", len(tasks)), "", totalDays, "", "")
	tb.maxWidth(4, 48)
	tb.alignRight(1, 5, 6)
	return tb.String() + "\n"
}

// HealthSummary renders an execution health snapshot and the blocked tasks.
func (r *Renderer) HealthSummary(h drift.ExecutionHealth, blocked []drift.BlockedTaskReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Execution health: %.1f (%s)\n", h.Score, r.healthStatus(h.Status))

	tb := newTable(r.mode)
	tb.header("Total", "Completed", "In progress", "Blocked", "Pending high priority")
	tb.row(h.TotalCount, h.CompletedCount, h.InProgressCount, h.BlockedCount, h.PendingHighPriority)
	tb.alignRight(1, 2, 3, 4, 5)
	sb.WriteString(tb.String())
	sb.WriteString("\n")

	if len(blocked) > 0 {
		bt := newTable(r.mode)
		bt.header("Blocked task", "Title", "Waiting on")
		for _, b := range blocked {
			bt.row(b.TaskID, b.Title, strings.Join(b.BlockedBy, ", "))
		}
		bt.maxWidth(2, 48)
		sb.WriteString(bt.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// AlertsTable lists stored alerts.
func (r *Renderer) AlertsTable(alerts []store.StoredAlert) string {
	if len(alerts) == 0 {
		return "No alerts\n"
	}
	tb := newTable(r.mode)
	tb.header("ID", "Source", "Severity", "Message", "Recommended action", "Active")
	for _, a := range alerts {
		active := "yes"
		if !a.Active {
			active = "no"
		}
		tb.row(a.ID, a.Source, r.severity(a.Severity), a.Message, a.RecommendedAction, active)
	}
	tb.maxWidth(4, 50)
	tb.maxWidth(5, 40)
	return tb.String() + "\n"
}

// StagesTable lists the recorded stage results of a run.
func (r *Renderer) StagesTable(records []store.StageRecord) string {
	if len(records) == 0 {
		return "No stage results\n"
	}
	tb := newTable(r.mode)
	tb.header("Stage", "Status", "Tasks", "Recorded", "Error")
	for _, rec := range records {
		tb.row(rec.Stage, r.outcome(rec.Status), len(rec.Result.Tasks()), formatTime(rec.RecordedAt), rec.Result.Error())
	}
	tb.maxWidth(5, 60)
	tb.alignRight(3)
	return tb.String() + "\n"
}

// RunsTable lists pipeline runs.
func (r *Renderer) RunsTable(runs []store.Run) string {
	if len(runs) == 0 {
		return "No runs found\n"
	}
	tb := newTable(r.mode)
	tb.header("Run", "Status", "Domain", "Team", "Goal", "Started", "Finished")
	for _, run := range runs {
		tb.row(run.ID, r.outcome(run.Status), run.Domain, run.TeamSize, run.Goal, formatTime(run.CreatedAt), formatTimePtr(run.FinishedAt))
	}
	tb.maxWidth(5, 40)
	tb.alignRight(4)
	return tb.String() + "\n"
}

// JobsTable lists daemon jobs.
func (r *Renderer) JobsTable(jobs []daemon.Job) string {
	if len(jobs) == 0 {
		return "No jobs\n"
	}
	tb := newTable(r.mode)
	tb.header("Job", "Type", "Status", "Scheduled", "Started", "Finished", "Run", "Lease owner")
	for _, j := range jobs {
		tb.row(j.ID, j.Type, r.outcome(j.Status), formatTime(j.ScheduledAt), formatTimePtr(j.StartedAt), formatTimePtr(j.FinishedAt), j.RunID, j.LeaseOwner)
	}
	return tb.String() + "\n"
}

// AuditTable lists audit events.
func (r *Renderer) AuditTable(events []audit.Event) string {
	if len(events) == 0 {
		return "No audit events\n"
	}
	tb := newTable(r.mode)
	tb.header("ID", "Time", "Actor", "Event", "Payload")
	for _, e := range events {
		tb.row(e.ID, formatTime(e.Timestamp), e.Actor, e.Type, e.PayloadJSON)
	}
	tb.maxWidth(5, 70)
	tb.alignRight(1)
	return tb.String() + "\n"
}
