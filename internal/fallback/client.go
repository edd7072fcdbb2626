package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/generation"
	"github.com/abhisek/examforge/internal/llm"
	"github.com/abhisek/examforge/internal/validator"
)

// ErrAllProvidersExhausted is returned when every fallback model failed.
var ErrAllProvidersExhausted = errors.New("all fallback models exhausted")

// DefaultMaxRetries is the number of retries per model on server errors.
const DefaultMaxRetries = 2

// ModelProvider returns a provider bound to the named model.
type ModelProvider func(model string) llm.Provider

// Client serves batches from an ordered list of secondary models. It
// never caches prompts.
type Client struct {
	state      *State
	provider   ModelProvider
	validator  *validator.Validator
	opts       generation.CallOptions
	maxRetries int
	retryDelay time.Duration
	sleep      generation.Sleeper
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMaxRetries overrides the per-model retry count.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryDelay sets the pause between retries of the same model.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithSleeper replaces the retry sleeper.
func WithSleeper(s generation.Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCallOptions overrides the per-call options. Any cache model is
// ignored.
func WithCallOptions(o generation.CallOptions) Option {
	return func(c *Client) { c.opts = o }
}

// NewClient creates a fallback client over the shared rotation state.
func NewClient(state *State, provider ModelProvider, opts ...Option) *Client {
	c := &Client{
		state:      state,
		provider:   provider,
		validator:  validator.New(),
		opts:       generation.DefaultCallOptions(),
		maxRetries: DefaultMaxRetries,
		retryDelay: time.Second,
		sleep:      generation.SleepContext,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.opts.Cache = nil
	return c
}

// Generate tries the models from the current rotation index forward.
func (c *Client) Generate(ctx context.Context, cfg batch.BatchConfig, genCtx batch.GenerationContext) (*generation.Output, error) {
	if c.state.ResetIfExpired() {
		c.logger.Info("fallback rotation reset")
	}

	models := c.state.Models()
	var errs []error

	for idx := c.state.Current(); idx < len(models); idx++ {
		model := models[idx]
		out, err := c.tryModel(ctx, model, cfg, genCtx)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fallback %s: %w", model, ctx.Err())
		}
		errs = append(errs, fmt.Errorf("%s: %w", model, err))

		if llm.IsQuotaExhausted(err) {
			c.logger.Warn("fallback model exhausted, advancing rotation", "model", model, "error", err)
			c.state.Advance(idx)
			continue
		}
		c.logger.Warn("fallback model failed", "model", model, "error", err)
	}

	if len(errs) == 0 {
		return nil, ErrAllProvidersExhausted
	}
	return nil, fmt.Errorf("%w: %w", ErrAllProvidersExhausted, errors.Join(errs...))
}

// tryModel runs one initial attempt plus up to maxRetries retries on
// server errors.
func (c *Client) tryModel(ctx context.Context, model string, cfg batch.BatchConfig, genCtx batch.GenerationContext) (*generation.Output, error) {
	p := c.provider(model)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.retryDelay); err != nil {
				return nil, err
			}
		}
		out, err := generation.RunBatch(ctx, p, c.validator, cfg, genCtx, c.opts)
		if err == nil {
			c.logger.Info("fallback model succeeded", "model", model, "attempt", attempt+1, "questions", len(out.Questions))
			return out, nil
		}
		lastErr = err
		if llm.KindOf(err) != llm.KindServerError || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}
