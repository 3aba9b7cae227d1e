package harness

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"
	"testing"
)

// Result is the captured outcome of one CLI invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output returns stdout and stderr together for failure messages.
func (r Result) Output() string {
	return "stdout:\n" + r.Stdout + "\nstderr:\n" + r.Stderr
}

// Run executes the CLI in the provided working directory.
func Run(t *testing.T, binPath, workDir string, args ...string) Result {
	t.Helper()
	return run(t, binPath, workDir, args, nil)
}

// RunWithEnv executes the CLI with environment overrides.
func RunWithEnv(t *testing.T, binPath, workDir string, env map[string]string, args ...string) Result {
	t.Helper()
	return run(t, binPath, workDir, args, env)
}

// MustRun executes the CLI and fails the test on a non-zero exit.
func MustRun(t *testing.T, binPath, workDir string, args ...string) Result {
	t.Helper()
	res := run(t, binPath, workDir, args, nil)
	if res.ExitCode != 0 {
		t.Fatalf("startupops %s exit code %d\n%s", strings.Join(args, " "), res.ExitCode, res.Output())
	}
	return res
}

func run(t *testing.T, binPath, workDir string, args []string, env map[string]string) Result {
	t.Helper()

	cmd := exec.Command(binPath, args...)
	cmd.Dir = workDir
	// The CLI must never fall back to a workspace from the developer's shell.
	overrides := map[string]string{"STARTUPOPS_WORKSPACE": "", "NO_COLOR": "1"}
	for k, v := range env {
		overrides[k] = v
	}
	cmd.Env = mergeEnv(overrides)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := Result{}
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			t.Fatalf("run %s: %v", binPath, err)
		}
		res.ExitCode = ee.ExitCode()
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res
}

func mergeEnv(overrides map[string]string) []string {
	env := make(map[string]string, len(overrides))
	for _, entry := range os.Environ() {
		key, val, _ := strings.Cut(entry, "=")
		env[key] = val
	}
	for k, v := range overrides {
		env[k] = v
	}

	merged := make([]string, 0, len(env))
	for k, v := range env {
		merged = append(merged, k+"="+v)
	}
	sort.Strings(merged)
	return merged
}
