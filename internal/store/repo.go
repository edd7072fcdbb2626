package store

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/examforge/internal/batch"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStaleContext is returned by SaveBatch when the stored generation
	// context moved on since the batch was requested.
	ErrStaleContext = errors.New("stale generation context")

	// ErrAlreadyAnswered is returned when a question was answered before.
	ErrAlreadyAnswered = errors.New("question already answered")
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit     int       // max results (0 = unlimited)
	After     int64     // sequence > After
	Before    int64     // sequence < Before
	From      time.Time // timestamp >= From
	To        time.Time // timestamp <= To
	Purpose   string
	SessionID string
}

// SessionStatus is the lifecycle state of an exam session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusComplete  SessionStatus = "complete"
	StatusAbandoned SessionStatus = "abandoned"
)

// SessionRecord is a persisted exam session and its generation context.
type SessionRecord struct {
	ID         string
	Type       batch.SessionType
	Section    batch.Section
	Track      batch.Track
	BatchSize  int
	MaxBatches int
	Context    batch.GenerationContext
	Status     SessionStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SessionRepo persists sessions and their generated questions.
type SessionRepo interface {
	// Create stores a new session.
	Create(ctx context.Context, rec *SessionRecord) error

	// Get returns the session, or ErrNotFound.
	Get(ctx context.Context, id string) (*SessionRecord, error)

	// SaveBatch appends the questions of batchIndex and stores the updated
	// context in one transaction. It fails with ErrStaleContext unless the
	// stored context ends at batchIndex-1.
	SaveBatch(ctx context.Context, sessionID string, batchIndex int, questions []batch.SessionQuestion, updated batch.GenerationContext) error

	// Questions returns all questions of the session in delivery order.
	Questions(ctx context.Context, sessionID string) ([]batch.SessionQuestion, error)

	// BatchQuestions returns the questions of one batch in delivery order.
	BatchQuestions(ctx context.Context, sessionID string, batchIndex int) ([]batch.SessionQuestion, error)

	// SetStatus changes the session's lifecycle state.
	SetStatus(ctx context.Context, id string, status SessionStatus) error
}

// AnswerRepo records answers separately from the immutable questions.
type AnswerRepo interface {
	// Record stores an answer, or returns ErrAlreadyAnswered.
	Record(ctx context.Context, a batch.Answer) error

	// List returns the session's answers ordered by question index.
	List(ctx context.Context, sessionID string) ([]batch.Answer, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider            string
	Model               string
	Purpose             string
	SessionID           string
	BatchIndex          int
	Attempt             int
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
	LatencyMs           int64
	Success             bool
	ErrorMessage        string
	RequestBody         string
	ResponseBody        string
}

// LLMRequestEventRecord is a stored LLM request event.
type LLMRequestEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStats aggregates usage for one purpose.
type LLMUsageStats struct {
	Purpose             string
	Calls               int
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
	AvgLatencyMs        int64
}

// LLMModelUsage aggregates usage for one model.
type LLMModelUsage struct {
	Model               string
	Calls               int
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
}

// EventRepo provides append access to domain events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
}

// EventLog is an EventRepo that can also be queried.
type EventLog interface {
	EventRepo

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEventRecord, error)

	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error)
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}
