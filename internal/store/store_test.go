package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/examforge/internal/batch"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newSession(t *testing.T, s *Store, id string) *SessionRecord {
	t.Helper()
	rec := &SessionRecord{
		ID:         id,
		Type:       batch.SessionPractice,
		Section:    batch.SectionQuantitative,
		Track:      batch.TrackScientific,
		BatchSize:  5,
		MaxBatches: 10,
		Context:    batch.NewGenerationContext(),
	}
	if err := s.SessionRepo().Create(context.Background(), rec); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return rec
}

func sessionQuestions(sessionID string, batchIndex, n int) []batch.SessionQuestion {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	out := make([]batch.SessionQuestion, n)
	for i := range out {
		out[i] = batch.SessionQuestion{
			Question: batch.Question{
				ID:           batch.FormatID("quant", batchIndex, i+1),
				Section:      batch.SectionQuantitative,
				Topic:        "algebra",
				Difficulty:   batch.DifficultyEasy,
				QuestionType: batch.QuestionTypeMCQ,
				Stem:         fmt.Sprintf("stem %d", i),
				Choices:      []string{"a", "b", "c", "d"},
				AnswerIndex:  i % 4,
			},
			SessionID:   sessionID,
			BatchIndex:  batchIndex,
			Provider:    batch.ProviderPrimary,
			CacheHit:    batchIndex > 0,
			GeneratedAt: at,
		}
	}
	return out
}

func idsOf(qs []batch.SessionQuestion) []string {
	var ids []string
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	return ids
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestSessionCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	newSession(t, s, "s1")

	got, err := s.SessionRepo().Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Section != batch.SectionQuantitative || got.BatchSize != 5 || got.MaxBatches != 10 {
		t.Errorf("unexpected session: %+v", got)
	}
	if got.Context.LastBatchIndex != -1 {
		t.Errorf("LastBatchIndex = %d, want -1", got.Context.LastBatchIndex)
	}
	if len(got.Context.GeneratedIDs) != 0 {
		t.Errorf("GeneratedIDs = %v, want empty", got.Context.GeneratedIDs)
	}
	if got.Status != StatusActive {
		t.Errorf("Status = %q, want active", got.Status)
	}
}

func TestSessionGetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SessionRepo().Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveBatchAppendsInOrder(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	newSession(t, s, "s1")

	genCtx := batch.NewGenerationContext()
	for idx := range 2 {
		qs := sessionQuestions("s1", idx, 5)
		next, err := genCtx.Advance(idx, idsOf(qs))
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		if err := repo.SaveBatch(ctx, "s1", idx, qs, next); err != nil {
			t.Fatalf("save batch %d: %v", idx, err)
		}
		genCtx = next
	}

	all, err := repo.Questions(ctx, "s1")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(all) != 10 {
		t.Fatalf("got %d questions, want 10", len(all))
	}
	if all[0].ID != "quant_0_01" || all[9].ID != "quant_1_05" {
		t.Errorf("order = %s..%s", all[0].ID, all[9].ID)
	}
	if len(all[3].Choices) != 4 || all[3].AnswerIndex != 3 {
		t.Errorf("question body not round-tripped: %+v", all[3].Question)
	}

	second, err := repo.BatchQuestions(ctx, "s1", 1)
	if err != nil {
		t.Fatalf("batch questions: %v", err)
	}
	if len(second) != 5 || !second[0].CacheHit || second[0].BatchIndex != 1 {
		t.Errorf("unexpected batch 1: %+v", second)
	}

	rec, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Context.LastBatchIndex != 1 || len(rec.Context.GeneratedIDs) != 10 {
		t.Errorf("context = %+v", rec.Context)
	}
}

func TestSaveBatchRejectsStaleContext(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	newSession(t, s, "s1")

	qs := sessionQuestions("s1", 0, 5)
	next, _ := batch.NewGenerationContext().Advance(0, idsOf(qs))
	if err := repo.SaveBatch(ctx, "s1", 0, qs, next); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Saving batch 0 again is a stale write.
	err := repo.SaveBatch(ctx, "s1", 0, qs, next)
	if !errors.Is(err, ErrStaleContext) {
		t.Fatalf("err = %v, want ErrStaleContext", err)
	}

	all, _ := repo.Questions(ctx, "s1")
	if len(all) != 5 {
		t.Errorf("stale write leaked rows: %d questions", len(all))
	}
}

func TestSetStatus(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	newSession(t, s, "s1")

	if err := repo.SetStatus(ctx, "s1", StatusAbandoned); err != nil {
		t.Fatalf("set status: %v", err)
	}
	rec, _ := repo.Get(ctx, "s1")
	if rec.Status != StatusAbandoned {
		t.Errorf("Status = %q, want abandoned", rec.Status)
	}
	if err := repo.SetStatus(ctx, "nope", StatusComplete); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAnswerRecordAndList(t *testing.T) {
	s := openTestStore(t)
	repo := s.AnswerRepo()
	ctx := context.Background()

	a := batch.Answer{SessionID: "s1", QuestionIndex: 2, QuestionID: "quant_0_03", ChosenIndex: 1, Correct: true, AnsweredAt: time.Now()}
	if err := repo.Record(ctx, a); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := repo.Record(ctx, a); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("err = %v, want ErrAlreadyAnswered", err)
	}
	b := a
	b.QuestionIndex = 0
	b.Correct = false
	if err := repo.Record(ctx, b); err != nil {
		t.Fatalf("record second: %v", err)
	}

	list, err := repo.List(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].QuestionIndex != 0 || !list[1].Correct {
		t.Errorf("unexpected answers: %+v", list)
	}
}

func TestLLMEventsAppendQueryAndStats(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "anthropic", Model: "claude-sonnet-4-5-20250929", Purpose: "batch-gen", SessionID: "s1", BatchIndex: 0, Attempt: 1,
			InputTokens: 100, OutputTokens: 400, CacheCreationTokens: 2000, LatencyMs: 900, Success: true, RequestBody: "req", ResponseBody: "resp"},
		{Provider: "anthropic", Model: "claude-sonnet-4-5-20250929", Purpose: "batch-gen", SessionID: "s1", BatchIndex: 1, Attempt: 1,
			InputTokens: 120, OutputTokens: 420, CacheReadTokens: 2000, LatencyMs: 700, Success: true},
		{Provider: "gemini", Model: "gemini-2.5-flash", Purpose: "batch-gen", SessionID: "s2", BatchIndex: 0, Attempt: 1,
			InputTokens: 2100, OutputTokens: 500, LatencyMs: 1100, Success: false, ErrorMessage: "boom"},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[0].Model != "gemini-2.5-flash" || got[0].Sequence <= got[1].Sequence {
		t.Errorf("events not newest first: %+v", got[0])
	}

	s1, err := repo.QueryLLMEvents(ctx, QueryOpts{SessionID: "s1"})
	if err != nil {
		t.Fatalf("query by session: %v", err)
	}
	if len(s1) != 2 {
		t.Errorf("session filter returned %d events, want 2", len(s1))
	}

	first, err := repo.GetLLMEvent(ctx, got[2].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first == nil || first.RequestBody != "req" || first.CacheCreationTokens != 2000 {
		t.Errorf("unexpected event: %+v", first)
	}
	if missing, err := repo.GetLLMEvent(ctx, 9999); err != nil || missing != nil {
		t.Errorf("missing event = %+v, %v", missing, err)
	}

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage by purpose: %v", err)
	}
	if len(byPurpose) != 1 || byPurpose[0].Calls != 3 || byPurpose[0].CacheReadTokens != 2000 || byPurpose[0].AvgLatencyMs != 900 {
		t.Errorf("usage by purpose = %+v", byPurpose)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 2 || byModel[0].Model != "claude-sonnet-4-5-20250929" || byModel[0].InputTokens != 220 {
		t.Errorf("usage by model = %+v", byModel)
	}
}

func TestDefaultDBPathFromEnv(t *testing.T) {
	dir := t.TempDir()
	want := dir + "/nested/test.db"
	t.Setenv("EXAMFORGE_DB", want)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath: %v", err)
	}
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}
