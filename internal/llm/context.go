package llm

import "context"

type contextKey string

const (
	purposeKey contextKey = "llm_purpose"
	batchKey   contextKey = "llm_batch"
)

// WithPurpose attaches a purpose label to the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// BatchRef correlates a provider call with the batch it serves.
type BatchRef struct {
	SessionID  string
	BatchIndex int
	Attempt    int
}

// WithBatch attaches batch correlation to the context for event logging.
func WithBatch(ctx context.Context, ref BatchRef) context.Context {
	return context.WithValue(ctx, batchKey, ref)
}

// BatchFrom extracts the batch correlation, if any.
func BatchFrom(ctx context.Context) (BatchRef, bool) {
	ref, ok := ctx.Value(batchKey).(BatchRef)
	return ref, ok
}
