package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"startupops/internal/stage"
)

// FixtureAgent replays canned stage results from <Dir>/<stage>.yml.
type FixtureAgent struct {
	Dir string
}

func (a *FixtureAgent) Name() string {
	return "fixture"
}

func (a *FixtureAgent) Invoke(ctx context.Context, name stage.Name, _ map[string]any) (stage.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := a.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("fixture %s is empty", path)
	}
	return normalize(raw)
}

func (a *FixtureAgent) path(name stage.Name) (string, error) {
	for _, ext := range []string{".yml", ".yaml"} {
		p := filepath.Join(a.Dir, string(name)+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat fixture: %w", err)
		}
	}
	return "", fmt.Errorf("no fixture for stage %s in %s", name, a.Dir)
}

// WriteFixture stores r as the fixture for a stage.
func WriteFixture(dir string, name stage.Name, r stage.Result) error {
	data, err := yaml.Marshal(map[string]any(r))
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure fixtures dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, string(name)+".yml"), data, 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}

// normalize gives YAML-decoded values the same shapes JSON decoding would.
func normalize(raw map[string]any) (stage.Result, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize fixture: %w", err)
	}
	var r stage.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("normalize fixture: %w", err)
	}
	return r, nil
}
