package session

import (
	"errors"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/store"
)

var (
	// ErrNotFound is returned for unknown sessions or question indexes.
	ErrNotFound = store.ErrNotFound

	// ErrInvalidSession is returned for an unknown type, section or track.
	ErrInvalidSession = errors.New("invalid session")

	// ErrGenerationInProgress is returned when a batch of the same session
	// is already being generated.
	ErrGenerationInProgress = errors.New("generation already in progress")

	// ErrSessionComplete is returned for requests beyond the batch cap.
	ErrSessionComplete = errors.New("session complete")

	// ErrSessionAbandoned is returned for requests on an abandoned session.
	ErrSessionAbandoned = errors.New("session abandoned")

	// ErrOutOfSequence is returned when a batch skips ahead of the
	// session's generation context.
	ErrOutOfSequence = batch.ErrOutOfSequence

	// ErrInvalidChoice is returned for answers outside the choice range.
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrAlreadyAnswered is returned when a question is answered twice.
	ErrAlreadyAnswered = store.ErrAlreadyAnswered
)
