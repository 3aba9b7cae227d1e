package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"startupops/internal/agents"
	"startupops/internal/audit"
	"startupops/internal/config"
	"startupops/internal/logging"
	"startupops/internal/pipeline"
	"startupops/internal/report"
	"startupops/internal/store"
	"startupops/internal/throttle"
	"startupops/internal/workspace"
)

// app bundles what most commands need: the workspace, its configuration and
// the open store.
type app struct {
	ws       *workspace.Workspace
	cfg      *config.Config
	store    *store.Store
	audit    *audit.Logger
	renderer *report.Renderer
	logger   *slog.Logger
}

func workspaceRoot() string {
	root := strings.TrimSpace(globalFlags.workspace)
	if root == "" {
		root = os.Getenv(workspace.EnvRoot)
	}
	if root == "" {
		root = "."
	}
	return root
}

// loadConfig reads the workspace config and sets up logging. An explicit
// --config must exist; the workspace default may not.
func loadConfig(ws *workspace.Workspace) (*config.Config, error) {
	path := ws.ConfigPath
	mustExist := false
	if globalFlags.config != "" {
		resolved, err := ws.ResolvePath(globalFlags.config)
		if err != nil {
			return nil, fmt.Errorf("resolve --config: %w", err)
		}
		path = resolved
		mustExist = true
	}
	cfg, err := config.Load(path, mustExist)
	if err != nil {
		return nil, err
	}

	if globalFlags.logLevel != "" {
		cfg.Logging.Level = globalFlags.logLevel
	}
	if globalFlags.logFormat != "" {
		cfg.Logging.Format = globalFlags.logFormat
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logging.Init(level, cfg.Logging.Format)
	return cfg, nil
}

func openApp() (*app, error) {
	ws, err := workspace.Resolve(workspaceRoot())
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(ws)
	if err != nil {
		return nil, err
	}
	if err := ws.EnsureDirs(); err != nil {
		return nil, err
	}
	st, err := store.Open(ws.StoreDBPath)
	if err != nil {
		return nil, err
	}
	return &app{
		ws:       ws,
		cfg:      cfg,
		store:    st,
		audit:    audit.NewLogger(ws.AuditDBPath),
		renderer: report.New(report.ParseMode(globalFlags.format), !globalFlags.noColor && !color.NoColor),
		logger:   logging.New("cli"),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// agent builds the configured agent, or the one named by kind when set.
func (a *app) agent(kind string) (agents.Agent, error) {
	cfg := a.cfg.Agent
	if kind != "" {
		cfg.Kind = kind
	}
	fixtures := a.ws.FixturesDir
	if cfg.FixturesDir != "" {
		resolved, err := a.ws.ResolvePath(cfg.FixturesDir)
		if err != nil {
			return nil, fmt.Errorf("resolve fixtures dir: %w", err)
		}
		fixtures = resolved
	}
	return agents.FromConfig(cfg, agents.Options{
		FixturesDir: fixtures,
		WorkDir:     a.ws.RunsDir,
	})
}

func (a *app) throttle() (*throttle.Throttle, error) {
	return throttle.New(a.cfg.Throttle.Capacity)
}

func (a *app) orchestrator(kind string) (*pipeline.Orchestrator, error) {
	agent, err := a.agent(kind)
	if err != nil {
		return nil, err
	}
	th, err := a.throttle()
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Options{
		Agent:       agent,
		Throttle:    th,
		Store:       a.store,
		Audit:       a.audit,
		Logger:      logging.New("pipeline"),
		CallTimeout: a.cfg.Agent.Timeout,
	})
}

// runID returns id, or the latest run when id is empty.
func (a *app) runID(ctx context.Context, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	latest, err := a.store.LatestRunID(ctx)
	if store.IsNotFound(err) {
		return "", fmt.Errorf("no runs yet; start one with '%s run'", appName)
	}
	return latest, err
}

// withApp opens the app for the duration of one command.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}
