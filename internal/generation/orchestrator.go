package generation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/cachecost"
	"github.com/abhisek/examforge/internal/llm"
)

// State is a step of the per-batch state machine.
type State string

const (
	StateAttempting  State = "attempting"
	StateSucceeded   State = "succeeded"
	StateFallingBack State = "falling_back"
	StateFailed      State = "failed"
)

// Transition is reported to the observer on every state change.
type Transition struct {
	SessionID  string
	BatchIndex int
	State      State
	Attempt    int
	Err        error
}

// RetryPolicy bounds primary attempts. Delays[i] is slept after failed
// attempt i+1; the last entry repeats if attempts outnumber delays.
type RetryPolicy struct {
	MaxAttempts int
	Delays      []time.Duration
}

// DefaultRetryPolicy is three attempts with 1s, 2s and 4s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delays:      []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// Delay returns the wait after the given 0-based failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if attempt >= len(p.Delays) {
		return p.Delays[len(p.Delays)-1]
	}
	return p.Delays[attempt]
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Orchestrator runs one batch through the primary client with bounded
// retries and switches to the fallback client on rate limiting.
type Orchestrator struct {
	primary  BatchClient
	fallback BatchClient
	metrics  *cachecost.Metrics
	pricing  func(model string) cachecost.Pricing
	policy   RetryPolicy
	sleep    Sleeper
	now      func() time.Time
	logger   *slog.Logger
	observe  func(Transition)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFallback sets the secondary client used on rate limiting.
func WithFallback(c BatchClient) Option {
	return func(o *Orchestrator) { o.fallback = c }
}

// WithMetrics records cache metrics for every completed call.
func WithMetrics(m *cachecost.Metrics, pricing func(model string) cachecost.Pricing) Option {
	return func(o *Orchestrator) {
		o.metrics = m
		if pricing != nil {
			o.pricing = pricing
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithSleeper replaces the backoff sleeper.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithClock replaces the clock used for durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// OnTransition registers an observer for state changes.
func OnTransition(fn func(Transition)) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

// NewOrchestrator creates an orchestrator over the primary client.
func NewOrchestrator(primary BatchClient, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		primary: primary,
		pricing: cachecost.LookupPricing,
		policy:  DefaultRetryPolicy(),
		sleep:   SleepContext,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.policy.MaxAttempts < 1 {
		o.policy.MaxAttempts = 1
	}
	return o
}

// GenerateBatch produces the batch described by cfg. genCtx must be the
// context returned for the previous batch. On failure the returned error
// is a *TerminalError and no questions are produced.
func (o *Orchestrator) GenerateBatch(ctx context.Context, cfg batch.BatchConfig, genCtx batch.GenerationContext) (*batch.BatchResult, error) {
	start := o.now()
	log := o.logger.With("session", cfg.SessionID, "batch_index", cfg.BatchIndex)

	if err := cfg.Validate(); err != nil {
		return nil, o.fail(cfg, 0, newTerminal(KindMalformed, err))
	}
	if err := genCtx.CheckNext(cfg.BatchIndex); err != nil {
		return nil, o.fail(cfg, 0, newTerminal(KindMalformed, err))
	}

	var lastErr error
	for attempt := 1; attempt <= o.policy.MaxAttempts; attempt++ {
		o.emit(cfg, StateAttempting, attempt, nil)

		callCtx := llm.WithBatch(ctx, llm.BatchRef{SessionID: cfg.SessionID, BatchIndex: cfg.BatchIndex, Attempt: attempt})
		out, err := o.primary.Generate(callCtx, cfg, genCtx)
		if err == nil {
			log.Info("batch attempt succeeded", "attempt", attempt, "questions", len(out.Questions), "rejected", len(out.Rejected))
			return o.succeed(cfg, genCtx, out, batch.ProviderPrimary, start)
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, o.fail(cfg, attempt, newTerminal(KindCanceled, err))
		}

		kind := llm.KindOf(err)
		log.Warn("batch attempt failed", "attempt", attempt, "kind", kind, "error", err)

		switch kind {
		case llm.KindMalformed:
			o.recordRejected(err)
			return nil, o.fail(cfg, attempt, newTerminal(KindMalformed, err))
		case llm.KindRateLimited:
			return o.fallBack(ctx, cfg, genCtx, err, start, log)
		}

		if attempt == o.policy.MaxAttempts {
			break
		}
		if err := o.sleep(ctx, o.policy.Delay(attempt-1)); err != nil {
			return nil, o.fail(cfg, attempt, newTerminal(KindCanceled, lastErr))
		}
	}

	return nil, o.fail(cfg, o.policy.MaxAttempts, newTerminal(KindTransient, lastErr))
}

// fallBack runs the secondary client once. Its failure is logged, but the
// terminal error carries the primary error.
func (o *Orchestrator) fallBack(ctx context.Context, cfg batch.BatchConfig, genCtx batch.GenerationContext, primaryErr error, start time.Time, log *slog.Logger) (*batch.BatchResult, error) {
	if o.fallback == nil {
		return nil, o.fail(cfg, 0, newTerminal(KindRateLimited, primaryErr))
	}

	o.emit(cfg, StateFallingBack, 0, primaryErr)

	callCtx := llm.WithBatch(ctx, llm.BatchRef{SessionID: cfg.SessionID, BatchIndex: cfg.BatchIndex})
	out, err := o.fallback.Generate(callCtx, cfg, genCtx)
	if err == nil {
		log.Info("fallback succeeded", "questions", len(out.Questions), "model", out.Model)
		return o.succeed(cfg, genCtx, out, batch.ProviderSecondary, start)
	}

	log.Warn("fallback failed", "error", err)
	kind := KindAllProvidersExhausted
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		kind = KindCanceled
	}
	te := newTerminal(kind, primaryErr)
	te.FallbackErr = err
	return nil, o.fail(cfg, 0, te)
}

func (o *Orchestrator) succeed(cfg batch.BatchConfig, genCtx batch.GenerationContext, out *Output, provider batch.Provider, start time.Time) (*batch.BatchResult, error) {
	res := &batch.BatchResult{
		Questions: out.Questions,
		Usage:     out.Usage,
		Meta: batch.Meta{
			CacheHit:   out.Usage.CacheHit(),
			Provider:   provider,
			DurationMs: o.now().Sub(start).Milliseconds(),
		},
	}

	updated, err := genCtx.Advance(cfg.BatchIndex, res.IDs())
	if err != nil {
		return nil, o.fail(cfg, 0, newTerminal(KindMalformed, err))
	}
	res.UpdatedContext = updated

	if o.metrics != nil {
		o.metrics.Record(out.Usage, o.pricing(out.Model))
	}

	o.emit(cfg, StateSucceeded, 0, nil)
	return res, nil
}

// recordRejected counts a completed call whose candidates were all rejected.
func (o *Orchestrator) recordRejected(err error) {
	var rb *RejectedBatchError
	if o.metrics == nil || !errors.As(err, &rb) {
		return
	}
	o.metrics.Record(rb.Usage, o.pricing(rb.Model))
}

func (o *Orchestrator) fail(cfg batch.BatchConfig, attempt int, te *TerminalError) *TerminalError {
	o.emit(cfg, StateFailed, attempt, te)
	o.logger.Error("batch failed",
		"session", cfg.SessionID,
		"batch_index", cfg.BatchIndex,
		"kind", te.Kind,
		"error", te.Cause,
		"fallback_error", te.FallbackErr,
	)
	return te
}

func (o *Orchestrator) emit(cfg batch.BatchConfig, s State, attempt int, err error) {
	if o.observe == nil {
		return
	}
	o.observe(Transition{
		SessionID:  cfg.SessionID,
		BatchIndex: cfg.BatchIndex,
		State:      s,
		Attempt:    attempt,
		Err:        err,
	})
}
