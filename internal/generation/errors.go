package generation

import "fmt"

// TerminalKind classifies a batch failure that crossed the orchestrator.
type TerminalKind string

const (
	KindMalformed             TerminalKind = "malformed"
	KindTransient             TerminalKind = "transient"
	KindRateLimited           TerminalKind = "rate_limited"
	KindAllProvidersExhausted TerminalKind = "all_providers_exhausted"
	KindCanceled              TerminalKind = "canceled"
)

// presentable holds the default user-facing message per kind.
var presentable = map[TerminalKind]string{
	KindMalformed:             "The generated questions could not be used. Please try again.",
	KindTransient:             "The question service is temporarily unavailable. Please try again shortly.",
	KindRateLimited:           "The question service is busy right now. Please try again in a minute.",
	KindAllProvidersExhausted: "All question services are busy right now. Please try again later.",
	KindCanceled:              "Question generation was cancelled.",
}

// TerminalError is the only error GenerateBatch returns. A failed batch
// carries no questions. Unwrap yields the primary provider's error.
type TerminalError struct {
	Kind    TerminalKind
	Message string
	Cause   error

	// FallbackErr is the secondary client's failure, if fallback ran.
	FallbackErr error
}

func newTerminal(kind TerminalKind, cause error) *TerminalError {
	return &TerminalError{Kind: kind, Message: presentable[kind], Cause: cause}
}

func (e *TerminalError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("batch generation failed (%s)", e.Kind)
	}
	return fmt.Sprintf("batch generation failed (%s): %v", e.Kind, e.Cause)
}

func (e *TerminalError) Unwrap() error { return e.Cause }
