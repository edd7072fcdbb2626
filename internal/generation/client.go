package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/cachecost"
	"github.com/abhisek/examforge/internal/llm"
	"github.com/abhisek/examforge/internal/prompt"
	"github.com/abhisek/examforge/internal/validator"
)

// PurposeBatch labels batch generation calls in the event log.
const PurposeBatch = "batch-gen"

// Output is what a client returns for one successful call.
type Output struct {
	Questions []batch.Question
	Rejected  []validator.Rejection
	Usage     batch.UsageMetrics
	Model     string
}

// BatchClient generates the questions of one batch with a single logical
// call. Implementations do not retry across the orchestrator's policy.
type BatchClient interface {
	Generate(ctx context.Context, cfg batch.BatchConfig, genCtx batch.GenerationContext) (*Output, error)
}

// CallOptions tunes a single provider call.
type CallOptions struct {
	// Cache decides whether the stable segment is marked cacheable. Nil
	// disables caching.
	Cache *cachecost.Model

	MaxTokens   int
	Temperature float64

	// Timeout bounds one provider call. Zero means no extra bound.
	Timeout time.Duration
}

// DefaultCallOptions returns options suitable for batches of up to ten
// questions.
func DefaultCallOptions() CallOptions {
	return CallOptions{
		MaxTokens:   8192,
		Temperature: 0.7,
		Timeout:     60 * time.Second,
	}
}

// RunBatch builds the prompt, calls p once and validates the output. A
// response with no acceptable candidates is a malformed failure.
func RunBatch(ctx context.Context, p llm.Provider, v *validator.Validator, cfg batch.BatchConfig, genCtx batch.GenerationContext, opts CallOptions) (*Output, error) {
	pr := prompt.Build(cfg, genCtx)

	req := llm.Request{
		System:      pr.Stable,
		CacheSystem: opts.Cache != nil && opts.Cache.Eligible(pr.Stable),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: pr.Variable}},
		Schema:      prompt.ResponseSchema,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	ctx = llm.WithPurpose(ctx, PurposeBatch)

	resp, err := p.Generate(ctx, req)
	if err != nil {
		return nil, asProviderError(p.ModelID(), err)
	}

	res, err := v.Validate(string(resp.Content), validator.OptionsFor(cfg, genCtx))
	if err != nil {
		return nil, &llm.ProviderError{Kind: llm.KindMalformed, Model: resp.Model, Provider: "validator", Err: err}
	}
	usage := batch.UsageMetrics{
		InputTokens:         resp.Usage.InputTokens,
		OutputTokens:        resp.Usage.OutputTokens,
		CacheReadTokens:     resp.Usage.CacheReadTokens,
		CacheCreationTokens: resp.Usage.CacheCreationTokens,
	}
	if len(res.Accepted) == 0 {
		return nil, &RejectedBatchError{
			Usage: usage,
			Model: resp.Model,
			Err: &llm.ProviderError{
				Kind:     llm.KindMalformed,
				Model:    resp.Model,
				Provider: "validator",
				Err:      fmt.Errorf("all %d candidates rejected", len(res.Rejected)),
			},
		}
	}

	return &Output{
		Questions: res.Accepted,
		Rejected:  res.Rejected,
		Usage:     usage,
		Model:     resp.Model,
	}, nil
}

// RejectedBatchError is a completed call whose candidates were all
// rejected. It keeps the usage the provider billed for.
type RejectedBatchError struct {
	Usage batch.UsageMetrics
	Model string
	Err   error
}

func (e *RejectedBatchError) Error() string { return e.Err.Error() }

func (e *RejectedBatchError) Unwrap() error { return e.Err }

// asProviderError makes sure every failure crossing a client boundary is
// classified.
func asProviderError(model string, err error) error {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &llm.ProviderError{Kind: llm.KindServerError, Model: model, Provider: "unknown", Err: err}
	}
	return &llm.ProviderError{Kind: llm.Classify(0, err), Model: model, Provider: "unknown", Err: err}
}

// PrimaryClient issues batch calls to the primary provider with prompt
// caching.
type PrimaryClient struct {
	provider  llm.Provider
	validator *validator.Validator
	opts      CallOptions
}

// NewPrimaryClient creates a PrimaryClient. The cache model decides
// whether the stable segment is worth caching.
func NewPrimaryClient(p llm.Provider, cache cachecost.Model, opts CallOptions) *PrimaryClient {
	opts.Cache = &cache
	return &PrimaryClient{provider: p, validator: validator.New(), opts: opts}
}

// Generate performs one primary call for the batch.
func (c *PrimaryClient) Generate(ctx context.Context, cfg batch.BatchConfig, genCtx batch.GenerationContext) (*Output, error) {
	return RunBatch(ctx, c.provider, c.validator, cfg, genCtx, c.opts)
}

// ModelID returns the primary model.
func (c *PrimaryClient) ModelID() string {
	return c.provider.ModelID()
}
