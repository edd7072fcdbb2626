package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/cachecost"
	"github.com/abhisek/examforge/internal/store"
)

// Generator produces one batch for a generation context.
type Generator interface {
	GenerateBatch(ctx context.Context, cfg batch.BatchConfig, genCtx batch.GenerationContext) (*batch.BatchResult, error)
}

// Delivery is the result of a batch request.
type Delivery struct {
	SessionID  string                  `json:"sessionId"`
	BatchIndex int                     `json:"batchIndex"`
	Questions  []batch.SessionQuestion `json:"questions"`

	// Replayed is set when the batch was already materialized and the
	// stored questions were returned.
	Replayed bool `json:"replayed"`

	Meta *batch.Meta `json:"meta,omitempty"`
}

// Service owns exam sessions: creation, batch delivery, and answers.
type Service struct {
	sessions store.SessionRepo
	answers  store.AnswerRepo
	gen      Generator
	metrics  *cachecost.Metrics

	maxBatches int
	batchSizes map[batch.SessionType]int
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithMaxBatches overrides the per-session batch cap.
func WithMaxBatches(n int) Option {
	return func(s *Service) { s.maxBatches = n }
}

// WithBatchSize overrides the batch size of a session type.
func WithBatchSize(t batch.SessionType, n int) Option {
	return func(s *Service) { s.batchSizes[t] = n }
}

// WithMetrics exposes the given cache metrics through CacheMetrics.
func WithMetrics(m *cachecost.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the session ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a session service.
func NewService(sessions store.SessionRepo, answers store.AnswerRepo, gen Generator, opts ...Option) *Service {
	s := &Service{
		sessions:   sessions,
		answers:    answers,
		gen:        gen,
		maxBatches: batch.DefaultMaxBatches,
		batchSizes: map[batch.SessionType]int{
			batch.SessionFull:     batch.FullBatchSize,
			batch.SessionPractice: batch.PracticeBatchSize,
		},
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   slog.Default(),
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = cachecost.NewMetrics()
	}
	return s
}

// MaxBatches returns the per-session batch cap.
func (s *Service) MaxBatches() int {
	return s.maxBatches
}

// Create starts a session with an empty generation context.
func (s *Service) Create(ctx context.Context, typ batch.SessionType, section batch.Section, track batch.Track) (*store.SessionRecord, error) {
	if _, err := batch.ParseSessionType(string(typ)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if _, err := batch.ParseSection(string(section)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if _, err := batch.ParseTrack(string(track)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	rec := &store.SessionRecord{
		ID:         s.newID(),
		Type:       typ,
		Section:    section,
		Track:      track,
		BatchSize:  s.batchSizes[typ],
		MaxBatches: s.maxBatches,
		Context:    batch.NewGenerationContext(),
		Status:     store.StatusActive,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("session created", "session", rec.ID, "type", typ, "section", section, "track", track)
	return rec, nil
}

// Get returns the session.
func (s *Service) Get(ctx context.Context, id string) (*store.SessionRecord, error) {
	return s.sessions.Get(ctx, id)
}

// Questions returns every question delivered so far.
func (s *Service) Questions(ctx context.Context, id string) ([]batch.SessionQuestion, error) {
	if _, err := s.sessions.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.sessions.Questions(ctx, id)
}

// NextBatch delivers batchIndex of the session. A batch that was already
// generated is returned from storage, so duplicate requests are safe.
func (s *Service) NextBatch(ctx context.Context, sessionID string, batchIndex int) (*Delivery, error) {
	rec, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if d, ok, err := s.checkRequest(ctx, rec, batchIndex); ok || err != nil {
		return d, err
	}

	if !s.acquire(sessionID) {
		return nil, fmt.Errorf("session %s batch %d: %w", sessionID, batchIndex, ErrGenerationInProgress)
	}
	defer s.release(sessionID)

	// Another request may have completed the batch while we waited.
	rec, err = s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if d, ok, err := s.checkRequest(ctx, rec, batchIndex); ok || err != nil {
		return d, err
	}

	cfg := batch.BatchConfig{
		SessionID:  rec.ID,
		BatchIndex: batchIndex,
		BatchSize:  rec.BatchSize,
		Section:    rec.Section,
		Track:      rec.Track,
	}

	res, err := s.gen.GenerateBatch(ctx, cfg, rec.Context)
	if err != nil {
		s.logger.Warn("batch generation failed", "session", sessionID, "batch_index", batchIndex, "error", err)
		return nil, err
	}

	questions := batch.Enrich(rec.ID, batchIndex, res, s.now().UTC())
	if err := s.sessions.SaveBatch(ctx, rec.ID, batchIndex, questions, res.UpdatedContext); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}

	if batchIndex+1 >= rec.MaxBatches {
		if err := s.sessions.SetStatus(ctx, rec.ID, store.StatusComplete); err != nil {
			s.logger.Warn("failed to mark session complete", "session", rec.ID, "error", err)
		}
	}

	meta := res.Meta
	s.logger.Info("batch delivered",
		"session", rec.ID,
		"batch_index", batchIndex,
		"questions", len(questions),
		"provider", meta.Provider,
		"cache_hit", meta.CacheHit,
		"duration_ms", meta.DurationMs,
	)

	return &Delivery{SessionID: rec.ID, BatchIndex: batchIndex, Questions: questions, Meta: &meta}, nil
}

// checkRequest resolves requests that need no generation. It returns
// ok=true with a replayed delivery for materialized batches.
func (s *Service) checkRequest(ctx context.Context, rec *store.SessionRecord, batchIndex int) (*Delivery, bool, error) {
	if batchIndex < 0 {
		return nil, false, fmt.Errorf("batch %d: %w", batchIndex, ErrOutOfSequence)
	}

	if batchIndex <= rec.Context.LastBatchIndex {
		qs, err := s.sessions.BatchQuestions(ctx, rec.ID, batchIndex)
		if err != nil {
			return nil, false, err
		}
		return &Delivery{SessionID: rec.ID, BatchIndex: batchIndex, Questions: qs, Replayed: true}, true, nil
	}

	if rec.Status == store.StatusAbandoned {
		return nil, false, fmt.Errorf("session %s: %w", rec.ID, ErrSessionAbandoned)
	}
	if batchIndex >= rec.MaxBatches {
		return nil, false, fmt.Errorf("batch %d of %d: %w", batchIndex, rec.MaxBatches, ErrSessionComplete)
	}
	if batchIndex != rec.Context.NextBatchIndex() {
		return nil, false, fmt.Errorf("batch %d after %d: %w", batchIndex, rec.Context.LastBatchIndex, ErrOutOfSequence)
	}
	return nil, false, nil
}

func (s *Service) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[sessionID]; busy {
		return false
	}
	s.inflight[sessionID] = struct{}{}
	return true
}

func (s *Service) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, sessionID)
}

// Answer records the answer to the question at questionIndex.
func (s *Service) Answer(ctx context.Context, sessionID string, questionIndex, chosen int) (*batch.Answer, error) {
	questions, err := s.Questions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if questionIndex < 0 || questionIndex >= len(questions) {
		return nil, fmt.Errorf("question %d: %w", questionIndex, ErrNotFound)
	}
	if chosen < 0 || chosen >= batch.ChoiceCount {
		return nil, fmt.Errorf("choice %d: %w", chosen, ErrInvalidChoice)
	}

	q := questions[questionIndex]
	a := batch.Answer{
		SessionID:     sessionID,
		QuestionIndex: questionIndex,
		QuestionID:    q.ID,
		ChosenIndex:   chosen,
		Correct:       chosen == q.AnswerIndex,
		AnsweredAt:    s.now().UTC(),
	}
	if err := s.answers.Record(ctx, a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Answers returns the session's recorded answers.
func (s *Service) Answers(ctx context.Context, sessionID string) ([]batch.Answer, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.answers.List(ctx, sessionID)
}

// Abandon stops further batch generation for the session. Batches that
// were already delivered stay readable.
func (s *Service) Abandon(ctx context.Context, sessionID string) error {
	if err := s.sessions.SetStatus(ctx, sessionID, store.StatusAbandoned); err != nil {
		return err
	}
	s.logger.Info("session abandoned", "session", sessionID)
	return nil
}

// CacheMetrics returns the process-wide cache metrics.
func (s *Service) CacheMetrics() cachecost.CacheMetrics {
	return s.metrics.Snapshot()
}

// ResetCacheMetrics clears the cache metrics.
func (s *Service) ResetCacheMetrics() {
	s.metrics.Reset()
}
