// Package prefetch requests the next batch of a session before the reader
// runs out of questions.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/generation"
	"github.com/abhisek/examforge/internal/session"
)

// DefaultThreshold is the fraction of a batch after which the next one is
// requested.
const DefaultThreshold = 0.7

// ErrConflict signals that the session is already generating a batch.
var ErrConflict = session.ErrGenerationInProgress

// Phase is the state of the most recent request.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseScheduled Phase = "scheduled"
	PhaseInFlight  Phase = "in_flight"
	PhaseMerged    Phase = "merged"
	PhaseFailed    Phase = "failed"
	PhaseExhausted Phase = "exhausted"
)

// Requester fetches one batch of a session.
type Requester interface {
	RequestBatch(ctx context.Context, sessionID string, batchIndex int) ([]batch.SessionQuestion, error)
}

// Request is a scheduled batch request.
type Request struct {
	SessionID  string
	BatchIndex int
}

// PrefetchError is a non-fatal failure of a background request.
type PrefetchError struct {
	BatchIndex int
	Attempts   int
	Err        error
}

func (e *PrefetchError) Error() string {
	return fmt.Sprintf("prefetch batch %d failed after %d attempt(s): %v", e.BatchIndex, e.Attempts, e.Err)
}

func (e *PrefetchError) Unwrap() error { return e.Err }

// Config holds the scheduling parameters.
type Config struct {
	BatchSize  int
	Threshold  float64
	MaxBatches int
	Retry      generation.RetryPolicy
}

// DefaultConfig returns the defaults for a batch size.
func DefaultConfig(batchSize int) Config {
	return Config{
		BatchSize:  batchSize,
		Threshold:  DefaultThreshold,
		MaxBatches: batch.DefaultMaxBatches,
		Retry:      generation.DefaultRetryPolicy(),
	}
}

// TriggerPosition is the first in-batch position that schedules the next
// batch.
func (c Config) TriggerPosition() int {
	return int(float64(c.BatchSize) * c.Threshold)
}

// Scheduler tracks the questions a reader has locally and decides when the
// next batch is needed. It is safe for concurrent use.
type Scheduler struct {
	sessionID string
	cfg       Config
	requester Requester
	sleep     generation.Sleeper
	logger    *slog.Logger

	mu        sync.Mutex
	questions []batch.SessionQuestion
	seen      map[string]struct{}
	generated int
	requested map[int]struct{}
	phase     Phase
	abandoned bool
	lastErr   *PrefetchError

	wg sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSleeper replaces the backoff sleeper.
func WithSleeper(s generation.Sleeper) Option {
	return func(sc *Scheduler) { sc.sleep = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(sc *Scheduler) { sc.logger = l }
}

// NewScheduler creates a scheduler for a session with no local questions.
func NewScheduler(sessionID string, cfg Config, requester Requester, opts ...Option) *Scheduler {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = batch.DefaultMaxBatches
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = generation.DefaultRetryPolicy()
	}

	s := &Scheduler{
		sessionID: sessionID,
		cfg:       cfg,
		requester: requester,
		sleep:     generation.SleepContext,
		logger:    slog.Default(),
		seen:      make(map[string]struct{}),
		requested: make(map[int]struct{}),
		phase:     PhaseIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load seeds the scheduler with questions already delivered, for example
// when resuming a session.
func (s *Scheduler) Load(questions []batch.SessionQuestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeLocked(questions)
}

// OnPositionChanged is called whenever the reader moves to question index.
// It returns the request to execute when the next batch is due. The batch
// is marked requested before the caller executes it.
func (s *Scheduler) OnPositionChanged(index int) (*Request, bool) {
	if s.cfg.BatchSize <= 0 || index < 0 {
		return nil, false
	}
	pos := index % s.cfg.BatchSize
	cur := index / s.cfg.BatchSize

	s.mu.Lock()
	defer s.mu.Unlock()

	if pos < s.cfg.TriggerPosition() || s.generated > cur+1 {
		return nil, false
	}
	return s.scheduleLocked()
}

// Demand schedules the next unmaterialized batch regardless of position.
// Readers use it when they have outrun generation or need the first batch.
func (s *Scheduler) Demand() (*Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked()
}

func (s *Scheduler) scheduleLocked() (*Request, bool) {
	if s.abandoned {
		return nil, false
	}
	if s.generated >= s.cfg.MaxBatches {
		s.phase = PhaseExhausted
		return nil, false
	}
	next := s.generated
	if _, ok := s.requested[next]; ok {
		return nil, false
	}

	s.requested[next] = struct{}{}
	s.phase = PhaseScheduled
	return &Request{SessionID: s.sessionID, BatchIndex: next}, true
}

// Execute performs a scheduled request. Conflicts are retried with the
// configured backoff. On failure the batch is released for a later retry
// and a *PrefetchError is returned; it is also kept as LastError.
func (s *Scheduler) Execute(ctx context.Context, req *Request) error {
	s.setPhase(PhaseInFlight)
	log := s.logger.With("session", req.SessionID, "batch", req.BatchIndex)

	var (
		questions []batch.SessionQuestion
		err       error
		attempt   int
	)
	for attempt = 1; attempt <= s.cfg.Retry.MaxAttempts; attempt++ {
		questions, err = s.requester.RequestBatch(ctx, req.SessionID, req.BatchIndex)
		if err == nil || !errors.Is(err, ErrConflict) || attempt == s.cfg.Retry.MaxAttempts {
			break
		}
		log.Debug("prefetch conflict, backing off", "attempt", attempt)
		if serr := s.sleep(ctx, s.cfg.Retry.Delay(attempt-1)); serr != nil {
			err = serr
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		delete(s.requested, req.BatchIndex)
		pe := &PrefetchError{BatchIndex: req.BatchIndex, Attempts: attempt, Err: err}
		s.lastErr = pe
		if !s.abandoned {
			s.phase = PhaseFailed
		}
		log.Warn("prefetch failed", "error", err, "attempts", attempt)
		return pe
	}

	if s.abandoned {
		log.Debug("discarding prefetch for abandoned session", "questions", len(questions))
		return nil
	}

	added := s.mergeLocked(questions)
	s.lastErr = nil
	s.phase = PhaseMerged
	log.Debug("prefetch merged", "added", added, "total", len(s.questions))
	return nil
}

// mergeLocked appends questions whose IDs are not present yet and returns
// the number appended.
func (s *Scheduler) mergeLocked(questions []batch.SessionQuestion) int {
	added := 0
	for _, q := range questions {
		if _, dup := s.seen[q.ID]; dup {
			continue
		}
		s.seen[q.ID] = struct{}{}
		s.questions = append(s.questions, q)
		added++
		if q.BatchIndex >= s.generated {
			s.generated = q.BatchIndex + 1
		}
	}
	return added
}

// Trigger is OnPositionChanged followed by Execute in a goroutine. Errors
// are available from LastError; Wait blocks until triggered work is done.
func (s *Scheduler) Trigger(ctx context.Context, index int) bool {
	req, ok := s.OnPositionChanged(index)
	if !ok {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.Execute(ctx, req)
	}()
	return true
}

// Wait blocks until every request started by Trigger has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Abandon stops all further scheduling. Results of in-flight requests are
// discarded when they arrive.
func (s *Scheduler) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned = true
}

// Questions returns a copy of the local questions in delivery order.
func (s *Scheduler) Questions() []batch.SessionQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]batch.SessionQuestion, len(s.questions))
	copy(out, s.questions)
	return out
}

// Len returns the number of local questions.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions)
}

// GeneratedBatches returns the number of batches materialized locally.
func (s *Scheduler) GeneratedBatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generated
}

// Requested reports whether a batch is marked requested.
func (s *Scheduler) Requested(batchIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.requested[batchIndex]
	return ok
}

// Pending reports whether a batch request is scheduled or in flight.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseScheduled || s.phase == PhaseInFlight
}

// Phase returns the current phase.
func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Exhausted reports whether the batch cap has been reached.
func (s *Scheduler) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generated >= s.cfg.MaxBatches
}

// LastError returns the most recent unrecovered prefetch failure, if any.
func (s *Scheduler) LastError() *PrefetchError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.abandoned {
		s.phase = p
	}
}
