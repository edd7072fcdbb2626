package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/examforge/internal/store"
)

// NewProvider creates the configured Provider wrapped with event logging.
// Retries are not applied here; the generation orchestrator owns them.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return WithLogging(base, cfg.Provider, eventRepo), nil
}

// ModelFactory returns providers for a named model on one backend.
type ModelFactory func(model string) Provider

// NewModelFactory builds a factory over the configured backend so that a
// model rotation can switch models without new clients. Only backends with
// a model catalogue are supported: gemini, openrouter and openai.
func NewModelFactory(ctx context.Context, cfg Config, eventRepo store.EventRepo) (ModelFactory, error) {
	switch cfg.Provider {
	case "gemini":
		base, err := NewGeminiProvider(ctx, cfg.Gemini)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini provider: %w", err)
		}
		return func(model string) Provider {
			return WithLogging(base.WithModel(model), "gemini", eventRepo)
		}, nil
	case "openrouter":
		base, err := NewOpenRouterProvider(cfg.OpenRouter)
		if err != nil {
			return nil, fmt.Errorf("initializing openrouter provider: %w", err)
		}
		return func(model string) Provider {
			return WithLogging(base.WithModel(model), "openrouter", eventRepo)
		}, nil
	case "openai":
		base, err := NewOpenAIProvider(cfg.OpenAI)
		if err != nil {
			return nil, fmt.Errorf("initializing openai provider: %w", err)
		}
		return func(model string) Provider {
			return WithLogging(base.WithModel(model), "openai", eventRepo)
		}, nil
	case "mock":
		return func(model string) Provider { return NewMockModel(model) }, nil
	default:
		return nil, fmt.Errorf("provider %q does not support model rotation", cfg.Provider)
	}
}
