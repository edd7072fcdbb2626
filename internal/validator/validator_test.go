package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examforge/internal/batch"
)

func quantOptions(batchIndex int) Options {
	cfg := batch.BatchConfig{
		SessionID:  "s1",
		BatchIndex: batchIndex,
		BatchSize:  5,
		Section:    batch.SectionQuantitative,
		Track:      batch.TrackScientific,
	}
	return OptionsFor(cfg, batch.NewGenerationContext())
}

func candidateJSON(id string, answer int) string {
	idField := ""
	if id != "" {
		idField = fmt.Sprintf(`"id": %q, `, id)
	}
	return fmt.Sprintf(`{%s"topic": "algebra", "difficulty": "easy", "stem": "Solve x + 1 = 3", "choices": ["1", "2", "3", "4"], "answerIndex": %d, "explanation": "x = 2"}`, idField, answer)
}

func TestValidate_FiveWithoutIDs(t *testing.T) {
	var items []string
	for range 5 {
		items = append(items, candidateJSON("", 1))
	}
	raw := `{"questions": [` + strings.Join(items, ",") + `]}`

	res, err := New().Validate(raw, quantOptions(0))
	require.NoError(t, err)
	require.Len(t, res.Accepted, 5)
	assert.Empty(t, res.Rejected)

	re := regexp.MustCompile(`^quant_0_0[1-5]$`)
	seen := map[string]bool{}
	for _, q := range res.Accepted {
		assert.Regexp(t, re, q.ID)
		assert.False(t, seen[q.ID], "duplicate id %s", q.ID)
		seen[q.ID] = true
		assert.Len(t, q.Choices, 4)
		assert.Equal(t, 1, q.AnswerIndex)
		assert.Equal(t, batch.SectionQuantitative, q.Section)
	}
}

func TestValidate_CodeFenceAndProse(t *testing.T) {
	raw := "Here are your questions:\n```json\n[" + candidateJSON("quant_2_01", 0) + "]\n```\nGood luck!"
	res, err := New().Validate(raw, quantOptions(2))
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "quant_2_01", res.Accepted[0].ID)
}

func TestValidate_RepairsCommas(t *testing.T) {
	raw := `[` + candidateJSON("", 0) + "\n" + candidateJSON("", 2) + `,]`
	res, err := New().Validate(raw, quantOptions(0))
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 2)

	missingBetweenFields := "{\"stem\": \"2+2?\"\n\"choices\": [\"1\",\"2\",\"3\",\"4\"],\n\"answerIndex\": 3,}"
	res, err = New().Validate(missingBetweenFields, quantOptions(0))
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, 3, res.Accepted[0].AnswerIndex)
}

func TestValidate_RejectsInvalidCandidates(t *testing.T) {
	raw := `[
		{"stem": "", "choices": ["a","b","c","d"], "answerIndex": 0},
		{"stem": "three choices", "choices": ["a","b","c"], "answerIndex": 0},
		{"stem": "no answer", "choices": ["a","b","c","d"]},
		{"stem": "answer too big", "choices": ["a","b","c","d"], "answerIndex": 4},
		{"stem": "negative", "choices": ["a","b","c","d"], "answerIndex": -1},
		{"stem": "blank choice", "choices": ["a","","c","d"], "answerIndex": 1},
		"not an object",
		{"stem": "fine", "choices": ["a","b","c","d"], "answerIndex": 2}
	]`
	res, err := New().Validate(raw, quantOptions(0))
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "fine", res.Accepted[0].Stem)
	assert.Equal(t, "quant_0_01", res.Accepted[0].ID)

	require.Len(t, res.Rejected, 7)
	assert.Equal(t, "missing stem", res.Rejected[0].Reason)
	assert.Contains(t, res.Rejected[1].Reason, "expected 4 choices")
	assert.Equal(t, "missing answerIndex", res.Rejected[2].Reason)
	assert.Contains(t, res.Rejected[3].Reason, "out of range")
	assert.Contains(t, res.Rejected[5].Reason, "schema")
	assert.Equal(t, 6, res.Rejected[6].Index)
}

func TestValidate_DeduplicatesAgainstExistingAndBatch(t *testing.T) {
	opts := quantOptions(1)
	opts.Existing = []string{"quant_1_01"}

	raw := `[` + candidateJSON("quant_1_01", 0) + `,` + candidateJSON("quant_1_02", 0) + `,` + candidateJSON("quant_1_02", 0) + `]`
	res, err := New().Validate(raw, opts)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "quant_1_02", res.Accepted[0].ID)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, "duplicate id", res.Rejected[0].Reason)
}

func TestValidate_GeneratedIDSkipsProviderIDs(t *testing.T) {
	raw := `[` + candidateJSON("quant_0_02", 0) + `,` + candidateJSON("", 1) + `,` + candidateJSON("", 2) + `]`
	res, err := New().Validate(raw, quantOptions(0))
	require.NoError(t, err)
	assert.Empty(t, res.Rejected)
	require.Len(t, res.Accepted, 3)
	assert.Equal(t, "quant_0_02", res.Accepted[0].ID)
	assert.Equal(t, "quant_0_03", res.Accepted[1].ID)
	assert.Equal(t, "quant_0_04", res.Accepted[2].ID)
}

func TestValidate_GeneratedIDSkipsLaterProviderIDs(t *testing.T) {
	raw := `[` + candidateJSON("", 0) + `,` + candidateJSON("quant_0_01", 1) + `,` + candidateJSON("", 2) + `]`
	res, err := New().Validate(raw, quantOptions(0))
	require.NoError(t, err)
	assert.Empty(t, res.Rejected)
	require.Len(t, res.Accepted, 3)
	assert.Equal(t, []string{"quant_0_02", "quant_0_01", "quant_0_03"},
		[]string{res.Accepted[0].ID, res.Accepted[1].ID, res.Accepted[2].ID})
}

func TestValidate_ForeignIDIsReplaced(t *testing.T) {
	// An ID copied from an earlier batch does not follow this batch's pattern.
	raw := `[` + candidateJSON("quant_0_01", 0) + `]`
	res, err := New().Validate(raw, quantOptions(3))
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "quant_3_01", res.Accepted[0].ID)
}

func TestValidate_CapsAtBatchSize(t *testing.T) {
	var items []string
	for range 7 {
		items = append(items, candidateJSON("", 0))
	}
	res, err := New().Validate("["+strings.Join(items, ",")+"]", quantOptions(0))
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 5)
	assert.Len(t, res.Rejected, 2)
	assert.Equal(t, "exceeds batch size", res.Rejected[0].Reason)
}

func TestValidate_Unparseable(t *testing.T) {
	for _, raw := range []string{"", "I cannot help with that.", `{"questions": "nope"}`, `{"foo": 1}`} {
		_, err := New().Validate(raw, quantOptions(0))
		assert.True(t, errors.Is(err, ErrMalformedOutput), "raw %q: %v", raw, err)
	}
}

func TestValidate_EmptyListIsNotAnError(t *testing.T) {
	res, err := New().Validate(`{"questions": []}`, quantOptions(0))
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)
}

func TestValidate_Aliases(t *testing.T) {
	raw := `[{"question": "Pick one", "options": ["A) red", "B) blue", "C) green", "D) gold"], "correct_index": "1", "type": "multiple_choice", "level": "HARD", "category": "Word Problems"}]`
	res, err := New().Validate(raw, quantOptions(0))
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)

	q := res.Accepted[0]
	assert.Equal(t, "Pick one", q.Stem)
	assert.Equal(t, []string{"red", "blue", "green", "gold"}, q.Choices)
	assert.Equal(t, 1, q.AnswerIndex)
	assert.Equal(t, batch.QuestionTypeMCQ, q.QuestionType)
	assert.Equal(t, batch.DifficultyHard, q.Difficulty)
	assert.Equal(t, "word_problems", q.Topic)
}

func TestNormalizeCandidate_Defaults(t *testing.T) {
	stem := "  What is 2+2?  "
	answer := 3
	topic := "poetry"
	c := RawCandidate{Stem: &stem, Choices: []string{"1", "2", "3", "4"}, AnswerIndex: &answer, Topic: &topic}

	opts := quantOptions(4)
	q := NormalizeCandidate(c, 4, 2, opts)
	assert.Equal(t, "quant_4_02", q.ID)
	assert.Equal(t, "What is 2+2?", q.Stem)
	assert.Equal(t, opts.DefaultTopic, q.Topic)
	assert.Equal(t, batch.DifficultyMedium, q.Difficulty)
	assert.Equal(t, batch.QuestionTypeMCQ, q.QuestionType)
	assert.Empty(t, q.Explanation)
}

func TestNormalizeCandidate_Deterministic(t *testing.T) {
	stem := "Which is prime?"
	answer := 0
	c := RawCandidate{Stem: &stem, Choices: []string{"7", "8", "9", "10"}, AnswerIndex: &answer}
	opts := quantOptions(6)

	first := NormalizeCandidate(c, 6, 3, opts)
	second := NormalizeCandidate(c, 6, 3, opts)
	assert.Equal(t, first, second)
	assert.Equal(t, batch.FormatID(batch.SectionQuantitative.IDPrefix(), 6, 3), first.ID)
}

func TestOptionsFor(t *testing.T) {
	cfg := batch.BatchConfig{BatchIndex: 1, BatchSize: 10, Section: batch.SectionVerbal, Track: batch.TrackLiterary}
	g := batch.GenerationContext{GeneratedIDs: []string{"verbal_0_01"}, LastBatchIndex: 0}

	opts := OptionsFor(cfg, g)
	assert.Equal(t, "verbal", opts.IDPrefix)
	assert.Equal(t, 10, opts.MaxAccepted)
	assert.Equal(t, cfg.EffectiveCategories()[0], opts.DefaultTopic)
	assert.Equal(t, []string{"verbal_0_01"}, opts.Existing)
}
