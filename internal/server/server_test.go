package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/cachecost"
	"github.com/abhisek/examforge/internal/generation"
	"github.com/abhisek/examforge/internal/session"
	"github.com/abhisek/examforge/internal/store"
)

type stubGenerator struct {
	err     error
	started chan struct{}
	release chan struct{}
}

func (g *stubGenerator) GenerateBatch(_ context.Context, cfg batch.BatchConfig, genCtx batch.GenerationContext) (*batch.BatchResult, error) {
	if g.started != nil {
		g.started <- struct{}{}
		<-g.release
	}
	if g.err != nil {
		return nil, g.err
	}

	qs := make([]batch.Question, cfg.BatchSize)
	for i := range qs {
		qs[i] = batch.Question{
			ID:          batch.FormatID(cfg.IDPrefix(), cfg.BatchIndex, i+1),
			Section:     cfg.Section,
			Topic:       cfg.EffectiveCategories()[0],
			Stem:        fmt.Sprintf("stem %d", i),
			Choices:     []string{"a", "b", "c", "d"},
			AnswerIndex: 1,
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

func newTestServer(t *testing.T, gen session.Generator, opts ...session.Option) *httptest.Server {
	t.Helper()
	st, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	opts = append(opts, session.WithMetrics(cachecost.NewMetrics()))
	svc := session.NewService(st.SessionRepo(), st.AnswerRepo(), gen, opts...)
	ts := httptest.NewServer(New(svc, "en", nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, body := do(t, http.MethodPost, ts.URL+"/api/sessions",
		`{"type":"practice","section":"quantitative","track":"scientific"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["session"].(map[string]any)["id"].(string)
}

func errorCode(body map[string]any) string {
	return body["error"].(map[string]any)["code"].(string)
}

func errorMessage(body map[string]any) string {
	return body["error"].(map[string]any)["message"].(string)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	resp, body := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateAndGetSession(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	id := createSession(t, ts)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := body["session"].(map[string]any)
	assert.Equal(t, "quantitative", sess["section"])
	assert.Equal(t, float64(batch.PracticeBatchSize), sess["batchSize"])
	assert.Equal(t, float64(-1), sess["lastBatchIndex"])
	assert.Equal(t, "active", sess["status"])
}

func TestCreateSession_BadInput(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})

	resp, body := do(t, http.MethodPost, ts.URL+"/api/sessions", `{"section":"history","track":"scientific"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeBadRequest, errorCode(body))

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/sessions", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSession_NotFound(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	resp, body := do(t, http.MethodGet, ts.URL+"/api/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, CodeNotFound, errorCode(body))
	assert.Equal(t, "Not found.", errorMessage(body))
}

func TestNextBatch(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	id := createSession(t, ts)

	resp, body := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/batches/0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	qs := body["questions"].([]any)
	require.Len(t, qs, batch.PracticeBatchSize)
	assert.Equal(t, "quant_0_01", qs[0].(map[string]any)["id"])
	assert.Equal(t, false, body["replayed"])

	resp, body = do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/batches/0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["replayed"])

	resp, body = do(t, http.MethodGet, ts.URL+"/api/sessions/"+id+"/questions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["questions"].([]any), batch.PracticeBatchSize)
}

func TestNextBatch_OutOfSequence(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	id := createSession(t, ts)

	resp, body := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/batches/2", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, CodeOutOfSequence, errorCode(body))

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/batches/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNextBatch_SessionComplete(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{}, session.WithMaxBatches(1))
	id := createSession(t, ts)

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/batches/0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/batches/1", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, CodeSessionComplete, errorCode(body))
	assert.Equal(t, "This session has no more questions.", errorMessage(body))
}

func TestNextBatch_TerminalErrors(t *testing.T) {
	cases := []struct {
		kind   generation.TerminalKind
		status int
	}{
		{generation.KindMalformed, http.StatusBadGateway},
		{generation.KindTransient, http.StatusBadGateway},
		{generation.KindRateLimited, http.StatusBadGateway},
		{generation.KindAllProvidersExhausted, http.StatusBadGateway},
		{generation.KindCanceled, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			gen := &stubGenerator{err: &generation.TerminalError{Kind: tc.kind}}
			ts := newTestServer(t, gen)
			id := createSession(t, ts)

			resp, body := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/batches/0", "")
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, string(tc.kind), errorCode(body))
			assert.NotEmpty(t, errorMessage(body))
		})
	}
}

func TestNextBatch_LocalizedError(t *testing.T) {
	gen := &stubGenerator{err: &generation.TerminalError{Kind: generation.KindCanceled}}
	ts := newTestServer(t, gen)
	id := createSession(t, ts)

	_, body := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/batches/0", "")
	assert.Equal(t, "Question generation was cancelled.", errorMessage(body))

	_, body = do(t, http.MethodGet, ts.URL+"/api/sessions/missing", "", "Accept-Language", "ar")
	assert.Equal(t, "غير موجود.", errorMessage(body))
}

func TestNextBatch_ConcurrentRequestConflicts(t *testing.T) {
	gen := &stubGenerator{started: make(chan struct{}), release: make(chan struct{})}
	ts := newTestServer(t, gen)
	id := createSession(t, ts)

	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(ts.URL+"/api/sessions/"+id+"/batches/0", "application/json", nil)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-gen.started

	resp, body := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/batches/0", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeGenerationInProgress, errorCode(body))

	close(gen.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestAnswerAndSummary(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	id := createSession(t, ts)
	resp, _ := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/batches/0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/answers", `{"questionIndex":0,"chosenIndex":1}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["answer"].(map[string]any)["correct"])

	resp, body = do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/answers", `{"questionIndex":0,"chosenIndex":2}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeAlreadyAnswered, errorCode(body))

	resp, body = do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/answers", `{"questionIndex":1,"chosenIndex":9}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidChoice, errorCode(body))

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/answers", `{"questionIndex":1,"chosenIndex":0}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = do(t, http.MethodGet, ts.URL+"/api/sessions/"+id+"/summary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(batch.PracticeBatchSize), body["totalQuestions"])
	assert.Equal(t, float64(2), body["answered"])
	assert.Equal(t, float64(1), body["correct"])
}

func TestAbandonSession(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	id := createSession(t, ts)

	resp, _ := do(t, http.MethodDelete, ts.URL+"/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/batches/0", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, CodeSessionAbandoned, errorCode(body))
}

func TestCacheMetrics(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})

	resp, body := do(t, http.MethodGet, ts.URL+"/api/metrics/cache", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["totalCalls"])

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/metrics/cache/reset", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
