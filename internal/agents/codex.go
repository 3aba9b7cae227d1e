package agents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"startupops/internal/stage"
)

// CodexAgent shells out to the codex CLI, one non-interactive exec per stage.
type CodexAgent struct {
	Binary  string
	WorkDir string
	Model   func(stage string) string
	Timeout time.Duration
	Env     map[string]string
}

func (a *CodexAgent) Name() string {
	return "codex"
}

func (a *CodexAgent) Invoke(ctx context.Context, name stage.Name, input map[string]any) (stage.Result, error) {
	if a.WorkDir == "" {
		return nil, errors.New("workdir is required")
	}
	stageDir, err := filepath.Abs(filepath.Join(a.WorkDir, string(name)))
	if err != nil {
		return nil, fmt.Errorf("resolve stage dir: %w", err)
	}
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create stage dir: %w", err)
	}

	env := map[string]string{}
	for k, v := range a.Env {
		env[k] = v
	}
	if env["CODEX_HOME"] == "" {
		codexHome := filepath.Join(stageDir, "codex_home")
		if err := os.MkdirAll(codexHome, 0o755); err != nil {
			return nil, fmt.Errorf("create CODEX_HOME: %w", err)
		}
		env["CODEX_HOME"] = codexHome
	}

	user, err := UserPrompt(input)
	if err != nil {
		return nil, err
	}
	prompt := SystemPrompt(name) + "\n\n" + user + "\n"

	transcriptPath := filepath.Join(stageDir, "transcript.log")
	transcriptFile, err := os.OpenFile(transcriptPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer func() {
		_ = transcriptFile.Close()
	}()

	resultPath := filepath.Join(stageDir, "result.json")
	schemaPath := filepath.Join(stageDir, "result.schema.json")
	if err := os.WriteFile(schemaPath, []byte(resultSchema), 0o644); err != nil {
		return nil, fmt.Errorf("write result schema: %w", err)
	}

	runCtx := ctx
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	args := []string{
		"-a", "never",
		"-s", "read-only",
		"exec",
		"-C", stageDir,
		"--output-schema", schemaPath,
		"--output-last-message", resultPath,
	}
	if a.Model != nil {
		if m := a.Model(string(name)); m != "" {
			args = append(args, "-m", m)
		}
	}
	args = append(args, "-")

	binary := a.Binary
	if binary == "" {
		binary = "codex"
	}
	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Dir = stageDir
	cmd.Stdout = transcriptFile
	cmd.Stderr = transcriptFile
	cmd.Env = mergeEnv(os.Environ(), env)
	cmd.Stdin = strings.NewReader(prompt)

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("codex exited with code %d: %w", exitCodeFromError(err), err)
	}

	content, err := os.ReadFile(resultPath)
	if err != nil {
		return nil, fmt.Errorf("read codex result: %w", err)
	}
	return parseContent(string(content))
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(overrides))
	for _, entry := range base {
		key, _, _ := strings.Cut(entry, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		merged = append(merged, entry)
	}
	for key, value := range overrides {
		merged = append(merged, key+"="+value)
	}
	return merged
}

func exitCodeFromError(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return 124
	}
	return 1
}
