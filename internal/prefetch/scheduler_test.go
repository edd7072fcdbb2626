package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/generation"
	"github.com/abhisek/examforge/internal/session"
)

type fakeRequester struct {
	mu    sync.Mutex
	size  int
	calls []int
	errs  []error
	dup   bool
}

func (f *fakeRequester) RequestBatch(_ context.Context, sessionID string, batchIndex int) ([]batch.SessionQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, batchIndex)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}

	start := batchIndex
	if f.dup && batchIndex > 0 {
		start = batchIndex - 1
	}
	var out []batch.SessionQuestion
	for b := start; b <= batchIndex; b++ {
		out = append(out, makeBatch(sessionID, b, f.size)...)
	}
	return out, nil
}

func (f *fakeRequester) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func makeBatch(sessionID string, batchIndex, size int) []batch.SessionQuestion {
	qs := make([]batch.SessionQuestion, size)
	for i := range qs {
		qs[i] = batch.SessionQuestion{
			Question:   batch.Question{ID: batch.FormatID("quant", batchIndex, i+1)},
			SessionID:  sessionID,
			BatchIndex: batchIndex,
		}
	}
	return qs
}

type sleeps struct {
	mu sync.Mutex
	d  []time.Duration
}

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d = append(s.d, d)
	return nil
}

func newScheduler(t *testing.T, size int, req Requester, sl *sleeps) *Scheduler {
	t.Helper()
	cfg := DefaultConfig(size)
	s := NewScheduler("s1", cfg, req, WithSleeper(sl.sleep))
	s.Load(makeBatch("s1", 0, size))
	return s
}

func TestTriggerPosition(t *testing.T) {
	assert.Equal(t, 7, DefaultConfig(10).TriggerPosition())
	assert.Equal(t, 3, DefaultConfig(5).TriggerPosition())
}

func TestOnPositionChanged_TriggersOnceAtThreshold(t *testing.T) {
	s := newScheduler(t, 10, &fakeRequester{size: 10}, &sleeps{})

	for i := 0; i < 7; i++ {
		_, ok := s.OnPositionChanged(i)
		assert.False(t, ok, "index %d", i)
	}

	req, ok := s.OnPositionChanged(7)
	require.True(t, ok)
	assert.Equal(t, 1, req.BatchIndex)
	assert.Equal(t, "s1", req.SessionID)
	assert.True(t, s.Requested(1))
	assert.Equal(t, PhaseScheduled, s.Phase())

	for i := 8; i < 10; i++ {
		_, ok := s.OnPositionChanged(i)
		assert.False(t, ok, "index %d", i)
	}
	_, ok = s.OnPositionChanged(7)
	assert.False(t, ok)
}

func TestExecute_MergesAndAdvances(t *testing.T) {
	fr := &fakeRequester{size: 10}
	s := newScheduler(t, 10, fr, &sleeps{})

	req, ok := s.OnPositionChanged(7)
	require.True(t, ok)
	require.NoError(t, s.Execute(context.Background(), req))

	assert.Equal(t, PhaseMerged, s.Phase())
	assert.Equal(t, 20, s.Len())
	assert.Equal(t, 2, s.GeneratedBatches())
	assert.Equal(t, "quant_1_01", s.Questions()[10].ID)

	// Reading further into batch 0 does not re-request batch 1.
	_, ok = s.OnPositionChanged(9)
	assert.False(t, ok)

	req, ok = s.OnPositionChanged(17)
	require.True(t, ok)
	assert.Equal(t, 2, req.BatchIndex)
}

func TestExecute_FiltersDuplicateDelivery(t *testing.T) {
	fr := &fakeRequester{size: 5, dup: true}
	s := newScheduler(t, 5, fr, &sleeps{})

	req, ok := s.OnPositionChanged(3)
	require.True(t, ok)
	require.NoError(t, s.Execute(context.Background(), req))

	qs := s.Questions()
	require.Len(t, qs, 10)
	ids := make(map[string]bool)
	for _, q := range qs {
		assert.False(t, ids[q.ID], "duplicate %s", q.ID)
		ids[q.ID] = true
	}
	assert.Equal(t, "quant_0_01", qs[0].ID)
	assert.Equal(t, "quant_1_05", qs[9].ID)
}

func TestExecute_RetriesConflictWithBackoff(t *testing.T) {
	conflict := fmt.Errorf("server: %w", session.ErrGenerationInProgress)
	fr := &fakeRequester{size: 5, errs: []error{conflict, conflict}}
	sl := &sleeps{}
	s := newScheduler(t, 5, fr, sl)

	req, _ := s.OnPositionChanged(3)
	require.NoError(t, s.Execute(context.Background(), req))
	assert.Equal(t, 3, fr.callCount())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sl.d)
	assert.Equal(t, 10, s.Len())
}

func TestExecute_FailureReleasesBatch(t *testing.T) {
	conflict := session.ErrGenerationInProgress
	fr := &fakeRequester{size: 5, errs: []error{conflict, conflict, conflict}}
	sl := &sleeps{}
	s := newScheduler(t, 5, fr, sl)

	req, _ := s.OnPositionChanged(3)
	err := s.Execute(context.Background(), req)

	var pe *PrefetchError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.BatchIndex)
	assert.Equal(t, 3, pe.Attempts)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, sl.d, 2)

	assert.Equal(t, PhaseFailed, s.Phase())
	assert.False(t, s.Requested(1))
	assert.Same(t, pe, s.LastError())
	assert.Equal(t, 5, s.Len())

	// A later position change may retry.
	req, ok := s.OnPositionChanged(4)
	require.True(t, ok)
	require.NoError(t, s.Execute(context.Background(), req))
	assert.Nil(t, s.LastError())
}

func TestExecute_OtherErrorsNotRetried(t *testing.T) {
	terminal := &generation.TerminalError{Kind: generation.KindTransient}
	fr := &fakeRequester{size: 5, errs: []error{terminal}}
	sl := &sleeps{}
	s := newScheduler(t, 5, fr, sl)

	req, _ := s.OnPositionChanged(3)
	err := s.Execute(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 1, fr.callCount())
	assert.Empty(t, sl.d)
}

func TestCapStopsSilently(t *testing.T) {
	cfg := DefaultConfig(5)
	cfg.MaxBatches = 2
	fr := &fakeRequester{size: 5}
	s := NewScheduler("s1", cfg, fr, WithSleeper((&sleeps{}).sleep))
	s.Load(makeBatch("s1", 0, 5))

	req, ok := s.OnPositionChanged(3)
	require.True(t, ok)
	require.NoError(t, s.Execute(context.Background(), req))
	assert.True(t, s.Exhausted())

	_, ok = s.OnPositionChanged(8)
	assert.False(t, ok)
	assert.Equal(t, PhaseExhausted, s.Phase())
	assert.Nil(t, s.LastError())
	assert.Equal(t, 1, fr.callCount())
}

func TestAbandon(t *testing.T) {
	fr := &fakeRequester{size: 5}
	s := newScheduler(t, 5, fr, &sleeps{})

	req, ok := s.OnPositionChanged(3)
	require.True(t, ok)

	s.Abandon()
	require.NoError(t, s.Execute(context.Background(), req))
	assert.Equal(t, 5, s.Len(), "in-flight result is discarded")

	_, ok = s.Demand()
	assert.False(t, ok)
}

func TestDemand_FirstBatch(t *testing.T) {
	fr := &fakeRequester{size: 5}
	s := NewScheduler("s1", DefaultConfig(5), fr)

	req, ok := s.Demand()
	require.True(t, ok)
	assert.Equal(t, 0, req.BatchIndex)

	_, ok = s.Demand()
	assert.False(t, ok, "already requested")

	require.NoError(t, s.Execute(context.Background(), req))
	assert.Equal(t, 5, s.Len())
}

func TestTrigger(t *testing.T) {
	fr := &fakeRequester{size: 10}
	s := newScheduler(t, 10, fr, &sleeps{})

	assert.False(t, s.Trigger(context.Background(), 3))
	assert.True(t, s.Trigger(context.Background(), 7))
	assert.False(t, s.Trigger(context.Background(), 8))
	s.Wait()

	assert.Equal(t, 1, fr.callCount())
	assert.Equal(t, 20, s.Len())
}

func TestConcurrentPositionChangesScheduleOnce(t *testing.T) {
	s := newScheduler(t, 10, &fakeRequester{size: 10}, &sleeps{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	scheduled := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.OnPositionChanged(8); ok {
				mu.Lock()
				scheduled++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, scheduled)
}
