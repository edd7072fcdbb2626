package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/store"
)

type fakeGenerator struct {
	mu      sync.Mutex
	calls   []batch.BatchConfig
	err     error
	started chan struct{}
	release chan struct{}
}

func (g *fakeGenerator) GenerateBatch(ctx context.Context, cfg batch.BatchConfig, genCtx batch.GenerationContext) (*batch.BatchResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, cfg)
	err := g.err
	g.mu.Unlock()

	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	if err != nil {
		return nil, err
	}

	qs := make([]batch.Question, cfg.BatchSize)
	for i := range qs {
		qs[i] = batch.Question{
			ID:          batch.FormatID(cfg.IDPrefix(), cfg.BatchIndex, i+1),
			Section:     cfg.Section,
			Topic:       cfg.EffectiveCategories()[i%3],
			Stem:        fmt.Sprintf("q%d", i),
			Choices:     []string{"a", "b", "c", "d"},
			AnswerIndex: i % 4,
		}
	}
	res := &batch.BatchResult{Questions: qs, Meta: batch.Meta{Provider: batch.ProviderPrimary}}
	updated, err := genCtx.Advance(cfg.BatchIndex, res.IDs())
	if err != nil {
		return nil, err
	}
	res.UpdatedContext = updated
	return res, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func newTestService(t *testing.T, gen Generator, opts ...Option) *Service {
	t.Helper()
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ids := 0
	opts = append([]Option{WithIDGenerator(func() string {
		ids++
		return fmt.Sprintf("sess-%d", ids)
	})}, opts...)
	return NewService(s.SessionRepo(), s.AnswerRepo(), gen, opts...)
}

func TestCreate(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})
	ctx := context.Background()

	rec, err := svc.Create(ctx, batch.SessionPractice, batch.SectionQuantitative, batch.TrackScientific)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", rec.ID)
	assert.Equal(t, batch.PracticeBatchSize, rec.BatchSize)
	assert.Equal(t, batch.DefaultMaxBatches, rec.MaxBatches)
	assert.Equal(t, -1, rec.Context.LastBatchIndex)

	full, err := svc.Create(ctx, batch.SessionFull, batch.SectionVerbal, batch.TrackLiterary)
	require.NoError(t, err)
	assert.Equal(t, batch.FullBatchSize, full.BatchSize)

	_, err = svc.Create(ctx, "weekly", batch.SectionVerbal, batch.TrackLiterary)
	assert.Error(t, err)
}

func TestNextBatch_GeneratesAndPersists(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newTestService(t, gen)
	ctx := context.Background()

	rec, err := svc.Create(ctx, batch.SessionPractice, batch.SectionQuantitative, batch.TrackScientific)
	require.NoError(t, err)

	d, err := svc.NextBatch(ctx, rec.ID, 0)
	require.NoError(t, err)
	assert.False(t, d.Replayed)
	require.Len(t, d.Questions, 5)
	assert.Equal(t, "quant_0_01", d.Questions[0].ID)
	assert.Equal(t, rec.ID, d.Questions[0].SessionID)
	assert.Equal(t, batch.ProviderPrimary, d.Questions[0].Provider)

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Context.LastBatchIndex)
	assert.Len(t, got.Context.GeneratedIDs, 5)

	d, err = svc.NextBatch(ctx, rec.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "quant_1_01", d.Questions[0].ID)
	assert.Equal(t, 2, gen.callCount())
}

func TestNextBatch_DuplicateRequestReplays(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newTestService(t, gen)
	ctx := context.Background()
	rec, _ := svc.Create(ctx, batch.SessionPractice, batch.SectionVerbal, batch.TrackLiterary)

	first, err := svc.NextBatch(ctx, rec.ID, 0)
	require.NoError(t, err)

	again, err := svc.NextBatch(ctx, rec.ID, 0)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, len(first.Questions), len(again.Questions))
	assert.Equal(t, first.Questions[0].ID, again.Questions[0].ID)
	assert.Equal(t, 1, gen.callCount())
}

func TestNextBatch_OutOfSequence(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newTestService(t, gen)
	ctx := context.Background()
	rec, _ := svc.Create(ctx, batch.SessionPractice, batch.SectionQuantitative, batch.TrackScientific)

	_, err := svc.NextBatch(ctx, rec.ID, 2)
	assert.ErrorIs(t, err, ErrOutOfSequence)
	_, err = svc.NextBatch(ctx, rec.ID, -1)
	assert.ErrorIs(t, err, ErrOutOfSequence)
	assert.Zero(t, gen.callCount())
}

func TestNextBatch_CapReached(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newTestService(t, gen, WithMaxBatches(2))
	ctx := context.Background()
	rec, _ := svc.Create(ctx, batch.SessionPractice, batch.SectionQuantitative, batch.TrackScientific)

	for idx := range 2 {
		_, err := svc.NextBatch(ctx, rec.ID, idx)
		require.NoError(t, err)
	}
	_, err := svc.NextBatch(ctx, rec.ID, 2)
	assert.ErrorIs(t, err, ErrSessionComplete)

	got, _ := svc.Get(ctx, rec.ID)
	assert.Equal(t, store.StatusComplete, got.Status)
}

func TestNextBatch_UnknownSession(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})
	_, err := svc.NextBatch(context.Background(), "nope", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNextBatch_GenerationFailureKeepsContext(t *testing.T) {
	boom := errors.New("terminal")
	gen := &fakeGenerator{err: boom}
	svc := newTestService(t, gen)
	ctx := context.Background()
	rec, _ := svc.Create(ctx, batch.SessionPractice, batch.SectionQuantitative, batch.TrackScientific)

	_, err := svc.NextBatch(ctx, rec.ID, 0)
	assert.ErrorIs(t, err, boom)

	got, _ := svc.Get(ctx, rec.ID)
	assert.Equal(t, -1, got.Context.LastBatchIndex)

	// The guard is released after failure.
	gen.err = nil
	_, err = svc.NextBatch(ctx, rec.ID, 0)
	assert.NoError(t, err)
}

func TestNextBatch_ConcurrentRequestConflicts(t *testing.T) {
	gen := &fakeGenerator{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := newTestService(t, gen)
	ctx := context.Background()
	rec, _ := svc.Create(ctx, batch.SessionPractice, batch.SectionQuantitative, batch.TrackScientific)

	done := make(chan error, 1)
	go func() {
		_, err := svc.NextBatch(ctx, rec.ID, 0)
		done <- err
	}()
	<-gen.started

	_, err := svc.NextBatch(ctx, rec.ID, 0)
	assert.ErrorIs(t, err, ErrGenerationInProgress)

	close(gen.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, gen.callCount())
}

func TestNextBatch_Abandoned(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newTestService(t, gen)
	ctx := context.Background()
	rec, _ := svc.Create(ctx, batch.SessionPractice, batch.SectionQuantitative, batch.TrackScientific)

	_, err := svc.NextBatch(ctx, rec.ID, 0)
	require.NoError(t, err)
	require.NoError(t, svc.Abandon(ctx, rec.ID))

	_, err = svc.NextBatch(ctx, rec.ID, 1)
	assert.ErrorIs(t, err, ErrSessionAbandoned)

	// Delivered batches stay readable.
	d, err := svc.NextBatch(ctx, rec.ID, 0)
	require.NoError(t, err)
	assert.True(t, d.Replayed)
}

func TestAnswerAndSummary(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})
	ctx := context.Background()
	rec, _ := svc.Create(ctx, batch.SessionPractice, batch.SectionQuantitative, batch.TrackScientific)
	d, err := svc.NextBatch(ctx, rec.ID, 0)
	require.NoError(t, err)

	a, err := svc.Answer(ctx, rec.ID, 0, d.Questions[0].AnswerIndex)
	require.NoError(t, err)
	assert.True(t, a.Correct)
	assert.Equal(t, "quant_0_01", a.QuestionID)

	a, err = svc.Answer(ctx, rec.ID, 1, (d.Questions[1].AnswerIndex+1)%4)
	require.NoError(t, err)
	assert.False(t, a.Correct)

	_, err = svc.Answer(ctx, rec.ID, 0, 1)
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
	_, err = svc.Answer(ctx, rec.ID, 99, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Answer(ctx, rec.ID, 2, 4)
	assert.ErrorIs(t, err, ErrInvalidChoice)

	sum, err := svc.Summary(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.TotalQuestions)
	assert.Equal(t, 2, sum.Answered)
	assert.Equal(t, 1, sum.Correct)
	assert.InDelta(t, 0.5, sum.Accuracy, 1e-9)
}

func TestBuildSummary_IgnoresUnknownIndexes(t *testing.T) {
	qs := []batch.SessionQuestion{
		{Question: batch.Question{ID: "a", Topic: "algebra"}},
		{Question: batch.Question{ID: "b", Topic: "geometry"}},
	}
	answers := []batch.Answer{
		{QuestionIndex: 0, Correct: true},
		{QuestionIndex: 1, Correct: false},
		{QuestionIndex: 7, Correct: true},
	}
	sum := BuildSummary("s", qs, answers)
	if sum.Answered != 2 || sum.Correct != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sum.Topics) != 2 || sum.Topics[0].Topic != "algebra" {
		t.Fatalf("topics = %+v", sum.Topics)
	}
}

func TestCacheMetricsSnapshot(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})
	svc.metrics.RecordCacheHit(0.5)
	assert.Equal(t, 1, svc.CacheMetrics().CacheHits)
	svc.ResetCacheMetrics()
	assert.Zero(t, svc.CacheMetrics().TotalCalls)
}
