package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/examforge/internal/cachecost"
	"github.com/abhisek/examforge/internal/config"
	"github.com/abhisek/examforge/internal/fallback"
	"github.com/abhisek/examforge/internal/generation"
	"github.com/abhisek/examforge/internal/llm"
	"github.com/abhisek/examforge/internal/session"
	"github.com/abhisek/examforge/internal/store"
)

// newOrchestrator builds the primary client and, when configured, the
// fallback rotation, both logging their calls to events.
func newOrchestrator(ctx context.Context, cfg config.Config, events store.EventRepo, metrics *cachecost.Metrics, logger *slog.Logger) (*generation.Orchestrator, error) {
	if err := cfg.ValidateProviders(); err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(ctx, cfg.Primary, events)
	if err != nil {
		return nil, err
	}

	callOpts := generation.DefaultCallOptions()
	if cfg.Primary.MaxTokens > 0 {
		callOpts.MaxTokens = cfg.Primary.MaxTokens
	}
	callOpts.Timeout = cfg.Primary.Timeout

	primary := generation.NewPrimaryClient(provider, cfg.CacheModel(provider.ModelID()), callOpts)
	opts := []generation.Option{
		generation.WithMetrics(metrics, cfg.Pricing),
		generation.WithRetryPolicy(cfg.Retry),
		generation.WithLogger(logger),
	}

	if cfg.Fallback.Enabled() {
		factory, err := llm.NewModelFactory(ctx, cfg.Fallback.LLM, events)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		state := fallback.NewState(cfg.Fallback.Models, fallback.WithResetWindow(cfg.Fallback.ResetWindow))
		fb := fallback.NewClient(state, fallback.ModelProvider(factory),
			fallback.WithMaxRetries(cfg.Fallback.MaxRetries),
			fallback.WithCallOptions(callOpts),
			fallback.WithLogger(logger),
		)
		opts = append(opts, generation.WithFallback(fb))
		logger.Debug("fallback rotation enabled", "provider", cfg.Fallback.LLM.Provider, "models", cfg.Fallback.Models)
	}

	return generation.NewOrchestrator(primary, opts...), nil
}

// newService wires a session service over st.
func newService(ctx context.Context, cfg config.Config, st *store.Store, logger *slog.Logger) (*session.Service, error) {
	metrics := cachecost.NewMetrics()
	orch, err := newOrchestrator(ctx, cfg, st.EventRepo(), metrics, logger)
	if err != nil {
		return nil, err
	}

	opts := []session.Option{
		session.WithMetrics(metrics),
		session.WithMaxBatches(cfg.MaxBatches),
		session.WithLogger(logger),
	}
	for typ, size := range cfg.BatchSizes() {
		opts = append(opts, session.WithBatchSize(typ, size))
	}
	return session.NewService(st.SessionRepo(), st.AnswerRepo(), orch, opts...), nil
}
