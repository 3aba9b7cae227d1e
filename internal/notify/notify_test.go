package notify

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"startupops/internal/drift"
)

func TestSendDisabledIsNoop(t *testing.T) {
	called := false
	n := &Notifier{run: func(string, ...string) error {
		called = true
		return nil
	}}
	require.NoError(t, n.Send("title", "message"))
	assert.False(t, called)

	var nilNotifier *Notifier
	require.NoError(t, nilNotifier.Send("title", "message"))
}

func TestCommand(t *testing.T) {
	name, args, ok := command("darwin", `Say "hi"`, "body")
	require.True(t, ok)
	assert.Equal(t, "osascript", name)
	assert.Equal(t, []string{"-e", `display notification "body" with title "Say \"hi\""`}, args)

	name, args, ok = command("linux", "t", "m")
	require.True(t, ok)
	assert.Equal(t, "notify-send", name)
	assert.Equal(t, []string{"t", "m"}, args)

	_, _, ok = command("windows", "t", "m")
	assert.False(t, ok)
}

func TestSendWrapsCommandError(t *testing.T) {
	n := &Notifier{Enabled: true, run: func(string, ...string) error {
		return errors.New("boom")
	}}
	err := n.Send("t", "m")
	if _, _, ok := command(runtime.GOOS, "t", "m"); !ok {
		require.NoError(t, err)
		return
	}
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestFormatRunFinished(t *testing.T) {
	title, msg := FormatRunFinished("0123456789abcdef", 17, drift.ExecutionHealth{Score: 12.5, Status: drift.Critical})
	assert.Equal(t, "startupops: run needs attention", title)
	assert.Equal(t, "01234567: 17 tasks, health 12.5 (critical)", msg)

	title, _ = FormatRunFinished("run-1", 3, drift.ExecutionHealth{Score: 90, Status: drift.Healthy})
	assert.Equal(t, "startupops: run finished", title)
}
