package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorKind classifies a provider failure for retry and fallback policy.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindServerError ErrorKind = "server_error"
	KindMalformed   ErrorKind = "malformed"
	KindOther       ErrorKind = "other"
)

// ProviderError is the single failure type returned by providers.
type ProviderError struct {
	Kind       ErrorKind
	StatusCode int
	Provider   string
	Model      string
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is a rate-limit class provider error.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// KindOf returns the kind of the first ProviderError in err's chain, or
// KindOther when there is none.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindOther
}

var (
	rateLimitSignatures = []string{
		"rate limit", "rate_limit", "ratelimit", "too many requests",
		"quota", "resource_exhausted", "resource exhausted", "overloaded",
	}
	serverErrorSignatures = []string{
		"internal server error", "internal error", "bad gateway",
		"service unavailable", "gateway timeout", "unavailable", "deadline exceeded",
	}
)

// Classify maps an HTTP status and the error text to an ErrorKind. A zero
// status means none was available.
func Classify(status int, err error) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests, status == 529:
		return KindRateLimited
	case status == http.StatusRequestTimeout:
		return KindServerError
	case status >= 500:
		if matchesAny(err, rateLimitSignatures) {
			return KindRateLimited
		}
		return KindServerError
	case status >= 400:
		if matchesAny(err, rateLimitSignatures) {
			return KindRateLimited
		}
		return KindMalformed
	}

	switch {
	case matchesAny(err, rateLimitSignatures):
		return KindRateLimited
	case matchesAny(err, serverErrorSignatures):
		return KindServerError
	}
	return KindOther
}

func matchesAny(err error, signatures []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range signatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// IsQuotaExhausted reports whether err means the model cannot serve
// requests for a while: quota exhaustion, rate limiting, an unknown model
// or a missing endpoint.
func IsQuotaExhausted(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	if pe.Kind == KindRateLimited || pe.StatusCode == http.StatusNotFound {
		return true
	}
	return matchesAny(pe.Err, []string{"invalid model", "model not found", "not found", "is not a valid model", "does not exist"})
}

// ErrInvalidResponse indicates the LLM returned content that could not be
// used.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded indicates the response was truncated because it
// hit the MaxTokens limit.
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}

// malformed wraps err as a malformed-response ProviderError.
func malformed(provider, model string, err error) *ProviderError {
	return &ProviderError{Kind: KindMalformed, Provider: provider, Model: model, Err: err}
}

// fromStatus builds a ProviderError from a status code and error.
func fromStatus(provider, model string, status int, err error) *ProviderError {
	return &ProviderError{
		Kind:       Classify(status, err),
		StatusCode: status,
		Provider:   provider,
		Model:      model,
		Err:        err,
	}
}
