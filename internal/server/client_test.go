package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/generation"
	"github.com/abhisek/examforge/internal/session"
)

func TestClient_RoundTrip(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	c := NewClient(ts.URL + "/")
	ctx := context.Background()

	sess, err := c.CreateSession(ctx, batch.SessionPractice, batch.SectionVerbal, batch.TrackLiterary)
	require.NoError(t, err)
	assert.Equal(t, batch.PracticeBatchSize, sess.BatchSize)

	d, err := c.NextBatch(ctx, sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, d.Questions, batch.PracticeBatchSize)
	assert.Equal(t, "verbal_0_01", d.Questions[0].ID)

	a, err := c.Answer(ctx, sess.ID, 0, 1)
	require.NoError(t, err)
	assert.True(t, a.Correct)

	got, err := c.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LastBatchIndex)

	qs, err := c.Questions(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, qs, batch.PracticeBatchSize)

	as, err := c.Answers(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, as, 1)
	assert.Equal(t, 0, as[0].QuestionIndex)

	sum, err := c.Summary(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Answered)

	require.NoError(t, c.Abandon(ctx, sess.ID))
	_, err = c.NextBatch(ctx, sess.ID, 1)
	assert.ErrorIs(t, err, session.ErrSessionAbandoned)
}

func TestClient_CacheMetrics(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	c := NewClient(ts.URL)

	m, err := c.CacheMetrics(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, m.TotalCalls)

	m, err = c.CacheMetrics(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, m.TotalCalls)
}

func TestClient_MapsErrorCodes(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	c := NewClient(ts.URL)
	ctx := context.Background()

	_, err := c.NextBatch(ctx, "missing", 0)
	assert.ErrorIs(t, err, session.ErrNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Not found.", apiErr.Message)
}

func TestClient_BareConflictIsGenerationInProgress(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusConflict)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).NextBatch(context.Background(), "s", 0)
	assert.ErrorIs(t, err, session.ErrGenerationInProgress)
}

func TestMessageID(t *testing.T) {
	remote := &APIError{Status: http.StatusBadGateway, Code: string(generation.KindRateLimited)}
	assert.Equal(t, "ErrRateLimited", MessageID(remote))
	assert.Equal(t, "ErrRateLimited", MessageID(&generation.TerminalError{Kind: generation.KindRateLimited}))
	assert.Equal(t, "ErrGenerationInProgress", MessageID(&APIError{Status: http.StatusConflict, Code: CodeGenerationInProgress}))
	assert.Equal(t, "ErrInternal", MessageID(errors.New("boom")))
}
