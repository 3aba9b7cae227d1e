package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"startupops/internal/drift"
)

// Notifier sends desktop notifications.
type Notifier struct {
	Enabled bool

	// run executes the platform command; tests replace it.
	run func(name string, args ...string) error
}

// New returns a notifier that is a no-op unless enabled.
func New(enabled bool) *Notifier {
	return &Notifier{Enabled: enabled}
}

// Send displays a notification. On macOS it uses osascript and on Linux
// notify-send; elsewhere it does nothing.
func (n *Notifier) Send(title, message string) error {
	if n == nil || !n.Enabled {
		return nil
	}
	name, args, ok := command(runtime.GOOS, title, message)
	if !ok {
		return nil
	}
	run := n.run
	if run == nil {
		run = runCommand
	}
	if err := run(name, args...); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

func command(goos, title, message string) (string, []string, bool) {
	switch goos {
	case "darwin":
		title = strings.ReplaceAll(title, `"`, `\"`)
		message = strings.ReplaceAll(message, `"`, `\"`)
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
		return "osascript", []string{"-e", script}, true
	case "linux":
		return "notify-send", []string{title, message}, true
	}
	return "", nil, false
}

func runCommand(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// FormatRunFinished formats the notification for a finished pipeline run.
func FormatRunFinished(runID string, tasks int, health drift.ExecutionHealth) (title, message string) {
	switch health.Status {
	case drift.Critical, drift.AtRisk:
		title = "startupops: run needs attention"
	default:
		title = "startupops: run finished"
	}
	message = fmt.Sprintf("%s: %d tasks, health %.1f (%s)", shortID(runID), tasks, health.Score, health.Status)
	return title, message
}

// FormatRunFailed formats the notification for a run that stopped early.
func FormatRunFailed(err error) (title, message string) {
	return "startupops: run failed", err.Error()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
