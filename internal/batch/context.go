package batch

import (
	"errors"
	"fmt"
)

// RecentIDLimit is the number of generated IDs surfaced to the provider
// as deduplication hints.
const RecentIDLimit = 20

// ErrOutOfSequence is returned when a batch does not directly follow the
// last completed batch of its context.
var ErrOutOfSequence = errors.New("batch out of sequence")

// GenerationContext is the continuity state carried across the batches of
// one session. The context for batch N+1 is always the UpdatedContext
// returned for batch N.
type GenerationContext struct {
	// GeneratedIDs lists every question ID produced so far, in order.
	GeneratedIDs []string `json:"generatedIds"`

	// LastBatchIndex is the highest successfully completed batch, -1 initially.
	LastBatchIndex int `json:"lastBatchIndex"`
}

// NewGenerationContext returns the context of a session with no batches.
func NewGenerationContext() GenerationContext {
	return GenerationContext{GeneratedIDs: []string{}, LastBatchIndex: -1}
}

// NextBatchIndex returns the only batch index this context accepts.
func (g GenerationContext) NextBatchIndex() int {
	return g.LastBatchIndex + 1
}

// RecentIDs returns at most n of the most recently generated IDs.
func (g GenerationContext) RecentIDs(n int) []string {
	ids := g.GeneratedIDs
	if n > 0 && len(ids) > n {
		ids = ids[len(ids)-n:]
	}
	return append([]string(nil), ids...)
}

// Contains reports whether id was generated earlier in the session.
func (g GenerationContext) Contains(id string) bool {
	for _, existing := range g.GeneratedIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// CheckNext verifies that batchIndex is the next batch of this context.
func (g GenerationContext) CheckNext(batchIndex int) error {
	if batchIndex != g.NextBatchIndex() {
		return fmt.Errorf("%w: got batch %d, expected %d", ErrOutOfSequence, batchIndex, g.NextBatchIndex())
	}
	return nil
}

// Advance returns the context after batchIndex completed with ids. The
// receiver is left untouched.
func (g GenerationContext) Advance(batchIndex int, ids []string) (GenerationContext, error) {
	if err := g.CheckNext(batchIndex); err != nil {
		return GenerationContext{}, err
	}
	next := make([]string, 0, len(g.GeneratedIDs)+len(ids))
	next = append(next, g.GeneratedIDs...)
	next = append(next, ids...)
	return GenerationContext{GeneratedIDs: next, LastBatchIndex: batchIndex}, nil
}
