package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/examforge/internal/batch"
)

// Prompt is the two-segment request for one batch.
type Prompt struct {
	// Stable is identical for every batch of a session and may be cached
	// by the provider.
	Stable string

	// Variable carries everything specific to this batch.
	Variable string
}

const roleRules = `You are an exam author writing multiple-choice questions for a standardized university admission aptitude test.

Rules:
- Every question has exactly 4 choices and exactly one correct choice.
- answerIndex is the 0-based position of the correct choice (0, 1, 2 or 3).
- Distribute the correct answer position across the batch. Do not favour one position.
- Distractors must be plausible and reflect common mistakes, never random values.
- Write choices as plain text without letter labels such as "A)" or "(b)".
- Use plain text for mathematics: / for fractions, * for multiplication, ^ for powers, sqrt() for roots.
- Each stem must be self-contained. Do not refer to other questions in the batch.
- Keep stems under 120 words except for reading comprehension passages.
- The explanation gives the key step of the solution in one to three sentences.
- Respect the requested difficulty quota exactly.
- Never repeat a question that appears in the list of already generated IDs, and do not paraphrase their content.
- Use the IDs exactly as requested, numbered consecutively from 01.
- Respond with a single JSON object and nothing else. No markdown, no commentary.`

const difficultyGuide = `Difficulty levels:
- easy: one step, recall or direct application; a prepared student answers in under 45 seconds.
- medium: two or three steps or a non-obvious distractor; about 60 to 75 seconds.
- hard: multi-step reasoning, careful reading or a trap answer; up to 2 minutes.`

const questionTypeGuide = `Question types:
- mcq: a standard stem with 4 choices.
- comparison: compare Quantity A and Quantity B. Choices must be, in this order: "Quantity A is greater", "Quantity B is greater", "The two quantities are equal", "The relationship cannot be determined".
- passage: the stem starts with a short passage followed by a blank line and the question.`

// Build assembles the prompt for cfg given the session context. It is a
// pure function of its inputs.
func Build(cfg batch.BatchConfig, genCtx batch.GenerationContext) Prompt {
	return Prompt{
		Stable:   buildStable(cfg.Section, cfg.Track),
		Variable: buildVariable(cfg, genCtx),
	}
}

// buildStable renders the instruction segment. It must not read anything
// that changes between batches of a session.
func buildStable(section batch.Section, track batch.Track) string {
	var b strings.Builder

	b.WriteString(roleRules)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Section: %s\n", section)
	b.WriteString("Topic taxonomy (use these exact topic names):\n")
	for _, topic := range section.Topics() {
		fmt.Fprintf(&b, "- %s: %s\n", topic, topicGuides[topic])
	}

	if emphasis, ok := trackEmphasis[track][section]; ok {
		fmt.Fprintf(&b, "\nTrack: %s\n%s\n", track, emphasis)
	}

	b.WriteString("\n")
	b.WriteString(difficultyGuide)
	b.WriteString("\n\n")
	b.WriteString(questionTypeGuide)
	b.WriteString("\n\n")

	b.WriteString("Output format: a JSON object matching this schema:\n")
	schema, _ := json.MarshalIndent(ResponseSchema.Definition, "", "  ")
	b.Write(schema)

	return b.String()
}

func buildVariable(cfg batch.BatchConfig, genCtx batch.GenerationContext) string {
	var b strings.Builder
	quota := DifficultyQuota(cfg.BatchSize)
	prefix := cfg.IDPrefix()

	fmt.Fprintf(&b, "Generate %d questions.\n", cfg.BatchSize)
	fmt.Fprintf(&b, "Track: %s\n", cfg.Track)
	fmt.Fprintf(&b, "Topics for this batch: %s\n", strings.Join(cfg.EffectiveCategories(), ", "))
	fmt.Fprintf(&b, "Difficulty quota: %d easy, %d medium, %d hard\n", quota.Easy, quota.Medium, quota.Hard)
	fmt.Fprintf(&b, "IDs: %s through %s\n",
		batch.FormatID(prefix, cfg.BatchIndex, 1),
		batch.FormatID(prefix, cfg.BatchIndex, cfg.BatchSize))

	b.WriteString("\nAlready generated IDs in this session:\n")
	b.WriteString(buildDedup(genCtx.RecentIDs(batch.RecentIDLimit)))

	b.WriteString("\n\nExample of the expected output shape:\n")
	b.WriteString(buildExample(cfg))

	return b.String()
}

// buildDedup formats prior IDs for the prompt. Returns "None" if there are none.
func buildDedup(ids []string) string {
	if len(ids) == 0 {
		return "None"
	}
	return strings.Join(ids, ", ")
}

func buildExample(cfg batch.BatchConfig) string {
	topic := "topic"
	if cats := cfg.EffectiveCategories(); len(cats) > 0 {
		topic = cats[0]
	}
	example := map[string]any{
		"questions": []map[string]any{{
			"id":           batch.FormatID(cfg.IDPrefix(), cfg.BatchIndex, 1),
			"topic":        topic,
			"difficulty":   "easy",
			"questionType": "mcq",
			"stem":         "...",
			"choices":      []string{"...", "...", "...", "..."},
			"answerIndex":  2,
			"explanation":  "...",
		}},
	}
	out, _ := json.Marshal(example)
	return string(out)
}
