package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the workspace-relative configuration file.
const FileName = "startupops.yaml"

// EnvPrefix prefixes environment overrides, e.g. STARTUPOPS_AGENT_API_KEY.
const EnvPrefix = "STARTUPOPS"

// Config is the full startupops configuration.
type Config struct {
	Throttle ThrottleConfig `mapstructure:"throttle" yaml:"throttle"`
	Agent    AgentConfig    `mapstructure:"agent" yaml:"agent"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Daemon   DaemonConfig   `mapstructure:"daemon" yaml:"daemon"`
}

// ThrottleConfig bounds concurrent stage agent calls.
type ThrottleConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// AgentConfig selects and configures the stage agent.
type AgentConfig struct {
	// Kind is one of mock, fixture, http or codex.
	Kind    string `mapstructure:"kind" yaml:"kind"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model   string `mapstructure:"model" yaml:"model"`
	// Models overrides Model per stage name.
	Models      map[string]string `mapstructure:"models" yaml:"models,omitempty"`
	Timeout     time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries  int               `mapstructure:"max_retries" yaml:"max_retries"`
	Temperature float64           `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	// FixturesDir is resolved against the workspace root when relative.
	FixturesDir string `mapstructure:"fixtures_dir" yaml:"fixtures_dir"`
	CodexBinary string `mapstructure:"codex_binary" yaml:"codex_binary"`
}

// ModelFor returns the model configured for a stage.
func (a AgentConfig) ModelFor(stage string) string {
	if m := strings.TrimSpace(a.Models[stage]); m != "" {
		return m
	}
	return a.Model
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type DaemonConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	LeaseFor     time.Duration `mapstructure:"lease_for" yaml:"lease_for"`
	// Notify sends a desktop notification when a queued run finishes.
	Notify bool `mapstructure:"notify" yaml:"notify"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Throttle: ThrottleConfig{Capacity: 5},
		Agent: AgentConfig{
			Kind:        "mock",
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "moonshotai/kimi-k2-instruct-0905",
			Timeout:     30 * time.Second,
			MaxRetries:  3,
			Temperature: 0.7,
			MaxTokens:   4000,
			FixturesDir: "fixtures",
			CodexBinary: "codex",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Daemon: DaemonConfig{
			PollInterval: time.Second,
			LeaseFor:     10 * time.Minute,
		},
	}
}

// SetDefaults registers every default on v so environment overrides resolve
// for all known keys.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("throttle.capacity", defaults.Throttle.Capacity)

	v.SetDefault("agent.kind", defaults.Agent.Kind)
	v.SetDefault("agent.base_url", defaults.Agent.BaseURL)
	v.SetDefault("agent.api_key", defaults.Agent.APIKey)
	v.SetDefault("agent.model", defaults.Agent.Model)
	v.SetDefault("agent.models", map[string]string{})
	v.SetDefault("agent.timeout", defaults.Agent.Timeout)
	v.SetDefault("agent.max_retries", defaults.Agent.MaxRetries)
	v.SetDefault("agent.temperature", defaults.Agent.Temperature)
	v.SetDefault("agent.max_tokens", defaults.Agent.MaxTokens)
	v.SetDefault("agent.fixtures_dir", defaults.Agent.FixturesDir)
	v.SetDefault("agent.codex_binary", defaults.Agent.CodexBinary)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("daemon.poll_interval", defaults.Daemon.PollInterval)
	v.SetDefault("daemon.lease_for", defaults.Daemon.LeaseFor)
	v.SetDefault("daemon.notify", defaults.Daemon.Notify)
}

// Load reads configuration from defaults, the file at path and the
// environment, in increasing precedence. A missing file is an error only
// when mustExist is set.
func Load(path string, mustExist bool) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		case os.IsNotExist(err) && !mustExist:
		default:
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}
