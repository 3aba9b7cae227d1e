package agents

import (
	"context"
	"fmt"
	"net/http"

	"startupops/internal/config"
	"startupops/internal/stage"
	"startupops/internal/throttle"
)

// Agent produces the structured result of one pipeline stage.
type Agent interface {
	Name() string
	Invoke(ctx context.Context, name stage.Name, input map[string]any) (stage.Result, error)
}

// Options carries the workspace paths agents may need.
type Options struct {
	FixturesDir string
	WorkDir     string
}

// FromConfig builds the agent selected by cfg.Kind.
func FromConfig(cfg config.AgentConfig, opts Options) (Agent, error) {
	switch cfg.Kind {
	case "", "mock":
		return &MockAgent{}, nil
	case "fixture":
		if opts.FixturesDir == "" {
			return nil, fmt.Errorf("fixture agent requires a fixtures dir")
		}
		return &FixtureAgent{Dir: opts.FixturesDir}, nil
	case "http":
		return &HTTPAgent{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.ModelFor,
			MaxRetries:  cfg.MaxRetries,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Client:      &http.Client{Timeout: cfg.Timeout},
		}, nil
	case "codex":
		if opts.WorkDir == "" {
			return nil, fmt.Errorf("codex agent requires a work dir")
		}
		return &CodexAgent{
			Binary:  cfg.CodexBinary,
			WorkDir: opts.WorkDir,
			Model:   cfg.ModelFor,
			Timeout: cfg.Timeout,
		}, nil
	}
	return nil, fmt.Errorf("unknown agent kind %q", cfg.Kind)
}

// Throttled wraps a so every call holds a slot of t.
func Throttled(a Agent, t *throttle.Throttle) Agent {
	return &throttledAgent{agent: a, throttle: t}
}

type throttledAgent struct {
	agent    Agent
	throttle *throttle.Throttle
}

func (a *throttledAgent) Name() string { return a.agent.Name() }

func (a *throttledAgent) Invoke(ctx context.Context, name stage.Name, input map[string]any) (stage.Result, error) {
	var result stage.Result
	err := a.throttle.Do(ctx, func() error {
		var err error
		result, err = a.agent.Invoke(ctx, name, input)
		return err
	})
	return result, err
}
