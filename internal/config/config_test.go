package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName), false)
	require.NoError(t, err)
	assert.Equal(t, Default(), withNilModels(cfg))
}

func TestLoadMissingRequiredFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	require.Error(t, err)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `
throttle:
  capacity: 2
agent:
  kind: http
  timeout: 45s
  models:
    advisor: big-model
logging:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("STARTUPOPS_AGENT_API_KEY", "secret")
	t.Setenv("STARTUPOPS_THROTTLE_CAPACITY", "3")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Throttle.Capacity, "environment wins over file")
	assert.Equal(t, "http", cfg.Agent.Kind)
	assert.Equal(t, "secret", cfg.Agent.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "big-model", cfg.Agent.ModelFor("advisor"))
	assert.Equal(t, Default().Agent.Model, cfg.Agent.ModelFor("product"))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `
throttle:
  capacity: 0
agent:
  kind: telepathy
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path, true)
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "throttle.capacity")
	assert.Contains(t, err.Error(), "agent.kind")
}

func TestValidateDefaults(t *testing.T) {
	assert.Empty(t, Default().Validate())
}

func TestValidateUnknownStageModel(t *testing.T) {
	cfg := Default()
	cfg.Agent.Models = map[string]string{"legal": "m"}
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "agent.models", errs[0].Field)
}

func withNilModels(cfg *Config) *Config {
	if len(cfg.Agent.Models) == 0 {
		cfg.Agent.Models = nil
	}
	return cfg
}
