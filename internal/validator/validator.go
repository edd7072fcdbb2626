package validator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/abhisek/examforge/internal/batch"
)

// Options carries the batch-level context used to normalize candidates.
type Options struct {
	Section             batch.Section
	BatchIndex          int
	IDPrefix            string
	DefaultTopic        string
	DefaultDifficulty   batch.Difficulty
	DefaultQuestionType batch.QuestionType

	// MaxAccepted caps the accepted list. Zero means no cap.
	MaxAccepted int

	// Existing lists IDs already generated in the session.
	Existing []string
}

// OptionsFor derives validator options for a batch.
func OptionsFor(cfg batch.BatchConfig, genCtx batch.GenerationContext) Options {
	topic := ""
	if cats := cfg.EffectiveCategories(); len(cats) > 0 {
		topic = cats[0]
	}
	return Options{
		Section:             cfg.Section,
		BatchIndex:          cfg.BatchIndex,
		IDPrefix:            cfg.IDPrefix(),
		DefaultTopic:        topic,
		DefaultDifficulty:   batch.DifficultyMedium,
		DefaultQuestionType: batch.QuestionTypeMCQ,
		MaxAccepted:         cfg.BatchSize,
		Existing:            genCtx.GeneratedIDs,
	}
}

// Rejection describes a dropped candidate.
type Rejection struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Result is the outcome of validating one provider response.
type Result struct {
	Accepted []batch.Question
	Rejected []Rejection
}

// Validator turns raw provider text into validated questions.
type Validator struct{}

// New returns a Validator. The candidate schema is compiled on first use.
func New() *Validator {
	return &Validator{}
}

// Validate parses raw, drops structurally invalid or duplicate candidates
// and normalizes the rest. An error is returned only when no candidate list
// can be recovered from raw.
func (v *Validator) Validate(raw string, opts Options) (*Result, error) {
	items, err := parseCandidates(raw)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(opts.Existing)+len(items))
	for _, id := range opts.Existing {
		seen[id] = true
	}

	// Provider IDs in the batch pattern are reserved before any ID is
	// generated.
	reserved := make(map[string]bool)
	for _, item := range items {
		var c RawCandidate
		if json.Unmarshal(item, &c) == nil && keepsID(deref(c.ID), opts.IDPrefix, opts.BatchIndex) {
			reserved[strings.TrimSpace(deref(c.ID))] = true
		}
	}

	res := &Result{}
	for i, item := range items {
		var c RawCandidate
		if err := json.Unmarshal(item, &c); err != nil {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: "not a JSON object"})
			continue
		}

		if reason := checkRequired(c); reason != "" {
			res.Rejected = append(res.Rejected, Rejection{Index: i, ID: deref(c.ID), Reason: reason})
			continue
		}

		if opts.MaxAccepted > 0 && len(res.Accepted) >= opts.MaxAccepted {
			res.Rejected = append(res.Rejected, Rejection{Index: i, ID: deref(c.ID), Reason: "exceeds batch size"})
			continue
		}

		seq := len(res.Accepted) + 1
		q := NormalizeCandidate(c, opts.BatchIndex, seq, opts)
		if keepsID(deref(c.ID), opts.IDPrefix, opts.BatchIndex) {
			if seen[q.ID] {
				res.Rejected = append(res.Rejected, Rejection{Index: i, ID: q.ID, Reason: "duplicate id"})
				continue
			}
		} else {
			for seen[q.ID] || reserved[q.ID] {
				seq++
				q.ID = batch.FormatID(opts.IDPrefix, opts.BatchIndex, seq)
			}
		}
		seen[q.ID] = true
		res.Accepted = append(res.Accepted, q)
	}

	return res, nil
}

// checkRequired returns a rejection reason, or "" if the candidate carries
// a usable stem, four choices and an answer index in range.
func checkRequired(c RawCandidate) string {
	stem := strings.TrimSpace(deref(c.Stem))
	switch {
	case stem == "":
		return "missing stem"
	case len(c.Choices) != batch.ChoiceCount:
		return fmt.Sprintf("expected %d choices, got %d", batch.ChoiceCount, len(c.Choices))
	case c.AnswerIndex == nil:
		return "missing answerIndex"
	case *c.AnswerIndex < 0 || *c.AnswerIndex >= batch.ChoiceCount:
		return fmt.Sprintf("answerIndex %d out of range", *c.AnswerIndex)
	}

	if err := checkSchema(stem, cleanChoices(c.Choices), *c.AnswerIndex); err != nil {
		return "schema: " + firstLine(err)
	}
	return ""
}

// NormalizeCandidate converts an accepted candidate into a Question. It is
// a pure function of its inputs; seq is the 1-based position of the
// candidate among accepted questions and only matters when the candidate
// has no usable ID.
func NormalizeCandidate(c RawCandidate, batchIndex, seq int, opts Options) batch.Question {
	q := batch.Question{
		ID:           normalizeID(deref(c.ID), opts.IDPrefix, batchIndex, seq),
		Section:      opts.Section,
		Topic:        normalizeTopic(deref(c.Topic), opts),
		Difficulty:   normalizeDifficulty(deref(c.Difficulty), opts.DefaultDifficulty),
		QuestionType: normalizeQuestionType(deref(c.QuestionType), opts.DefaultQuestionType),
		Stem:         strings.TrimSpace(deref(c.Stem)),
		Choices:      cleanChoices(c.Choices),
		Explanation:  strings.TrimSpace(deref(c.Explanation)),
	}
	if c.AnswerIndex != nil {
		q.AnswerIndex = *c.AnswerIndex
	}
	for _, tag := range c.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			q.Tags = append(q.Tags, tag)
		}
	}
	return q
}

// normalizeID keeps a provider ID only when it follows the batch pattern.
// Anything else is replaced so that IDs stay unique across batches.
func normalizeID(id, prefix string, batchIndex, seq int) string {
	if keepsID(id, prefix, batchIndex) {
		return strings.TrimSpace(id)
	}
	return batch.FormatID(prefix, batchIndex, seq)
}

// keepsID reports whether a provider ID follows the batch pattern and is
// kept as sent.
func keepsID(id, prefix string, batchIndex int) bool {
	want := fmt.Sprintf("%s_%d_", prefix, batchIndex)
	rest, ok := strings.CutPrefix(strings.TrimSpace(id), want)
	return ok && isDigits(rest)
}

func normalizeTopic(topic string, opts Options) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	t = strings.NewReplacer(" ", "_", "-", "_").Replace(t)
	if opts.Section.HasTopic(t) {
		return t
	}
	return opts.DefaultTopic
}

func normalizeDifficulty(d string, def batch.Difficulty) batch.Difficulty {
	diff := batch.Difficulty(strings.ToLower(strings.TrimSpace(d)))
	if diff.Valid() {
		return diff
	}
	return def
}

func normalizeQuestionType(t string, def batch.QuestionType) batch.QuestionType {
	switch qt := strings.ToLower(strings.TrimSpace(t)); qt {
	case "multiple_choice", "multiple-choice", "multiplechoice":
		return batch.QuestionTypeMCQ
	case "quantitative_comparison":
		return batch.QuestionTypeComparison
	case "reading", "reading_comprehension":
		return batch.QuestionTypePassage
	default:
		if batch.QuestionType(qt).Valid() {
			return batch.QuestionType(qt)
		}
	}
	return def
}

var choiceLabelRe = regexp.MustCompile(`^\(?[A-Da-d][).:]\s+`)

// cleanChoices trims choices and strips letter labels such as "B) ".
func cleanChoices(choices []string) []string {
	out := make([]string, len(choices))
	for i, c := range choices {
		out[i] = choiceLabelRe.ReplaceAllString(strings.TrimSpace(c), "")
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
