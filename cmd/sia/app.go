package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sia/internal/audit"
	"sia/internal/config"
	"sia/internal/execution"
	"sia/internal/llm"
	"sia/internal/logging"
	"sia/internal/obs"
	"sia/internal/pipeline"
	"sia/internal/prompts"
	"sia/internal/source"
	"sia/internal/worldmodel"
)

const (
	worldModelFile = "world_model.json"
	proposalsFile  = "proposals.json"
)

// app bundles everything a command needs: config, logger, the world
// model store and the fully wired pipeline.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	store    *worldmodel.FileStore
	sources  *source.Registry
	auditLog *audit.FileLogger
	metrics  *obs.Metrics
	pipeline *pipeline.Pipeline
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store := worldmodel.NewFileStore(filepath.Join(cfg.DataDir, worldModelFile))
	m, err := store.LoadOrInit()
	if err != nil {
		return nil, err
	}

	auditLog, err := audit.NewFileLogger(cfg.LogDir, logger)
	if err != nil {
		return nil, err
	}

	metrics, err := obs.NewMetrics(obs.Config{
		Enabled:        cfg.Metrics.Enabled,
		PrometheusPort: cfg.Metrics.Port,
	}, logger)
	if err != nil {
		return nil, err
	}

	registry := source.NewRegistry()
	for _, src := range m.ConnectedSources {
		if src.Status != "active" {
			continue
		}
		registry.Register(source.NewSampleSource(src.Name, src.Domain, cfg.DataDir, source.Permissions{
			Read:  src.Permissions.Read,
			Write: src.Permissions.Write,
		}, logger))
	}

	var client llm.Client
	if cfg.LLM.Enabled() {
		client = llm.WrapWithRetry(llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.Timeout,
		}, logger), llm.DefaultRetryConfig(), logger)
	} else {
		logger.Info("app: no API key configured, reasoning stages use fallbacks")
	}

	loader, err := prompts.NewLoader()
	if err != nil {
		return nil, err
	}

	runtime := execution.NewRuntime(execution.Config{
		MaxRequests:  cfg.Exec.RateLimitMax,
		Window:       cfg.Exec.RateLimitWindow,
		MaxRetries:   cfg.Exec.MaxRetries,
		BaseDelay:    cfg.Exec.BackoffBase,
		MaxDelay:     cfg.Exec.BackoffCap,
		ProcessedCap: cfg.Exec.ProcessedCap,
	}, auditLog, metrics, logger)

	pipe := pipeline.New(store, registry, client, loader, runtime, auditLog, metrics, logger, pipeline.Options{
		ScoreThreshold: cfg.Scoring.Threshold,
		BaselineWeeks:  cfg.Scoring.BaselineWeeks,
		SnoozeSweep:    true,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		sources:  registry,
		auditLog: auditLog,
		metrics:  metrics,
		pipeline: pipe,
	}, nil
}

func (a *app) Close(ctx context.Context) {
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn("app: metrics shutdown: %v", err)
		}
	}
}

// domains lists the domains served by active connected sources.
func (a *app) domains() ([]string, error) {
	m, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var domains []string
	for _, src := range m.ConnectedSources {
		if src.Status != "active" || seen[src.Domain] {
			continue
		}
		seen[src.Domain] = true
		domains = append(domains, src.Domain)
	}
	return domains, nil
}

// saveProposals persists pending proposals so a later decide command
// can pick them up.
func (a *app) saveProposals(props []*pipeline.Proposal) error {
	data, err := json.MarshalIndent(props, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(a.cfg.DataDir, proposalsFile), data, 0o644)
}

// mergeProposals folds freshly surfaced proposals into the saved set,
// replacing stale entries with the same ID.
func (a *app) mergeProposals(fresh []*pipeline.Proposal) error {
	existing, err := a.loadProposals()
	if err != nil {
		return err
	}
	byID := map[string]bool{}
	for _, prop := range fresh {
		byID[prop.ID] = true
	}
	merged := make([]*pipeline.Proposal, 0, len(existing)+len(fresh))
	for _, prop := range existing {
		if !byID[prop.ID] {
			merged = append(merged, prop)
		}
	}
	merged = append(merged, fresh...)
	return a.saveProposals(merged)
}

func (a *app) loadProposals() ([]*pipeline.Proposal, error) {
	data, err := os.ReadFile(filepath.Join(a.cfg.DataDir, proposalsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var props []*pipeline.Proposal
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("parse %s: %w", proposalsFile, err)
	}
	return props, nil
}

func (a *app) findProposal(id string) (*pipeline.Proposal, []*pipeline.Proposal, error) {
	props, err := a.loadProposals()
	if err != nil {
		return nil, nil, err
	}
	for _, prop := range props {
		if prop.ID == id {
			return prop, props, nil
		}
	}
	return nil, nil, fmt.Errorf("proposal %s not found, run `sia run` first", id)
}
