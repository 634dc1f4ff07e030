package app

import (
	"context"
	"fmt"
	"log/slog"

	"docwatch/internal/config"
	"docwatch/internal/llm"
	"docwatch/internal/models"
	"docwatch/internal/policy"
	"docwatch/internal/service"
	"docwatch/internal/state"
	"docwatch/internal/store"
)

// App holds the long-lived services built from configuration.
type App struct {
	Config    *config.Config
	Policy    *policy.Policy
	Pipeline  *service.Pipeline
	Store     *store.Store // nil when persistence is disabled
	Workspace *state.Workspace
	Logger    *slog.Logger
}

// New builds the pipeline, the adjudicator and the run store described by
// cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p, err := policy.LoadOrDefault(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	adjudicator, err := llm.NewAdjudicator(llm.Settings{
		Provider: cfg.AI.Provider,
		Endpoint: cfg.AI.Endpoint,
		BaseURL:  cfg.AI.BaseURL,
		Model:    cfg.AI.Model,
		APIKey:   cfg.AI.APIKey,
		Timeout:  cfg.AI.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("configure adjudicator: %w", err)
	}
	if adjudicator == nil {
		logger.Info("AI adjudication disabled, L2 changes use heuristic fallback")
	}

	pipeline, err := NewPipeline(p, adjudicator, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Policy:    p,
		Pipeline:  pipeline,
		Workspace: state.NewWorkspace(),
		Logger:    logger,
	}

	if cfg.Store.Driver != "" {
		s, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.ConnectionString(), logger)
		if err != nil {
			return nil, err
		}
		a.Store = s
	}

	return a, nil
}

// NewPipeline wires the scoring components for policy p.
func NewPipeline(p *policy.Policy, adjudicator llm.Adjudicator, cfg *config.Config, logger *slog.Logger) (*service.Pipeline, error) {
	tiers, err := cfg.AI.Tiers()
	if err != nil {
		return nil, err
	}

	aligner := service.NewColumnAligner(p, service.AlignerOptions{
		MinMatchFraction: cfg.Alignment.MinMatchFraction,
		FuzzyThreshold:   cfg.Alignment.FuzzyThreshold,
	}, logger)
	classifier := service.NewRiskClassifier(p, service.NewFormatNormalizer(), adjudicator, service.ClassifierOptions{
		Timeout:       cfg.AI.Timeout,
		BatchSize:     cfg.AI.BatchSize,
		Workers:       cfg.AI.Workers,
		EscalateTiers: tiers,
		CacheExpiry:   cfg.AI.CacheExpiry,
	}, logger)
	aggregator := service.NewTableScoreAggregator(cfg.Scoring.Background, logger)
	clusterer := service.NewHeatmapClusterer(logger)

	return service.NewPipeline(p, aligner, classifier, aggregator, clusterer, logger), nil
}

// Run scores pairs and persists the result when a store is configured.
func (a *App) Run(ctx context.Context, pairs []models.TablePair) (*service.RunResult, error) {
	result, err := a.Pipeline.Run(ctx, pairs)
	if err != nil {
		return nil, err
	}
	if a.Store != nil {
		if err := a.Store.SaveRun(ctx, result.ScoreSet, result.Heatmap); err != nil {
			return result, fmt.Errorf("persist run: %w", err)
		}
	}
	return result, nil
}

// Close releases the run store.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
