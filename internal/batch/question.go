package batch

import (
	"fmt"
	"time"
)

// Question is a validated multiple-choice question. Only values produced by
// the validator carry this type.
type Question struct {
	ID           string       `json:"id"`
	Section      Section      `json:"section"`
	Topic        string       `json:"topic"`
	Difficulty   Difficulty   `json:"difficulty"`
	QuestionType QuestionType `json:"questionType"`
	Stem         string       `json:"stem"`
	Choices      []string     `json:"choices"`
	AnswerIndex  int          `json:"answerIndex"`

	// Explanation may be empty pending enrichment.
	Explanation string   `json:"explanation"`
	Tags        []string `json:"tags,omitempty"`
}

// FormatID builds a question ID from its prefix, batch index and 1-based
// sequence number within the batch.
func FormatID(prefix string, batchIndex, seq int) string {
	return fmt.Sprintf("%s_%d_%02d", prefix, batchIndex, seq)
}

// Provider identifies which backend produced a batch.
type Provider string

const (
	ProviderPrimary   Provider = "primary"
	ProviderSecondary Provider = "secondary"
)

// SessionQuestion is a Question enriched with session-scoped metadata by
// the caller of the orchestrator.
type SessionQuestion struct {
	Question

	SessionID   string    `json:"sessionId"`
	BatchIndex  int       `json:"batchIndex"`
	Provider    Provider  `json:"provider"`
	CacheHit    bool      `json:"cacheHit"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Enrich attaches session metadata to every question of a result.
func Enrich(sessionID string, batchIndex int, res *BatchResult, at time.Time) []SessionQuestion {
	out := make([]SessionQuestion, len(res.Questions))
	for i, q := range res.Questions {
		out[i] = SessionQuestion{
			Question:    q,
			SessionID:   sessionID,
			BatchIndex:  batchIndex,
			Provider:    res.Meta.Provider,
			CacheHit:    res.Meta.CacheHit,
			GeneratedAt: at,
		}
	}
	return out
}

// Answer is consumer-side answer bookkeeping, kept apart from the immutable
// question and keyed by (SessionID, QuestionIndex).
type Answer struct {
	SessionID     string    `json:"sessionId"`
	QuestionIndex int       `json:"questionIndex"`
	QuestionID    string    `json:"questionId"`
	ChosenIndex   int       `json:"chosenIndex"`
	Correct       bool      `json:"correct"`
	AnsweredAt    time.Time `json:"answeredAt"`
}
