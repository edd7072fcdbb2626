// Package practice adapts a local session service or a remote server to
// the interactive practice screens.
package practice

import (
	"context"
	"fmt"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/prefetch"
	"github.com/abhisek/examforge/internal/server"
	"github.com/abhisek/examforge/internal/session"
	"github.com/abhisek/examforge/internal/store"
)

// Session is what a practice screen needs to start or resume.
type Session struct {
	ID         string
	Type       batch.SessionType
	Section    batch.Section
	Track      batch.Track
	BatchSize  int
	MaxBatches int

	// Questions and Answers are non-empty when resuming.
	Questions []batch.SessionQuestion
	Answers   []batch.Answer
}

// Position is the index of the first unanswered question.
func (s *Session) Position() int {
	answered := make(map[int]bool, len(s.Answers))
	for _, a := range s.Answers {
		answered[a.QuestionIndex] = true
	}
	for i := range s.Questions {
		if !answered[i] {
			return i
		}
	}
	return len(s.Questions)
}

// Backend is the session API used by the practice screens.
type Backend interface {
	prefetch.Requester

	Start(ctx context.Context, typ batch.SessionType, section batch.Section, track batch.Track) (*Session, error)
	Resume(ctx context.Context, sessionID string) (*Session, error)
	Answer(ctx context.Context, sessionID string, questionIndex, chosen int) (*batch.Answer, error)
	Summary(ctx context.Context, sessionID string) (*session.Summary, error)
	Abandon(ctx context.Context, sessionID string) error
}

// Local serves practice from an in-process session service.
func Local(svc *session.Service) Backend {
	return localBackend{LocalRequester: prefetch.LocalRequester{Service: svc}}
}

type localBackend struct {
	prefetch.LocalRequester
}

func (b localBackend) Start(ctx context.Context, typ batch.SessionType, section batch.Section, track batch.Track) (*Session, error) {
	rec, err := b.Create(ctx, typ, section, track)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:         rec.ID,
		Type:       rec.Type,
		Section:    rec.Section,
		Track:      rec.Track,
		BatchSize:  rec.BatchSize,
		MaxBatches: rec.MaxBatches,
	}, nil
}

func (b localBackend) Resume(ctx context.Context, sessionID string) (*Session, error) {
	rec, err := b.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec.Status == store.StatusAbandoned {
		return nil, fmt.Errorf("resume %s: %w", sessionID, session.ErrSessionAbandoned)
	}
	qs, err := b.Questions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	as, err := b.Answers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:         rec.ID,
		Type:       rec.Type,
		Section:    rec.Section,
		Track:      rec.Track,
		BatchSize:  rec.BatchSize,
		MaxBatches: rec.MaxBatches,
		Questions:  qs,
		Answers:    as,
	}, nil
}

// Remote serves practice from a running server.
func Remote(c *server.Client) Backend {
	return remoteBackend{HTTPRequester: prefetch.HTTPRequester{Client: c}}
}

type remoteBackend struct {
	prefetch.HTTPRequester
}

func (b remoteBackend) Start(ctx context.Context, typ batch.SessionType, section batch.Section, track batch.Track) (*Session, error) {
	v, err := b.CreateSession(ctx, typ, section, track)
	if err != nil {
		return nil, err
	}
	return fromView(v), nil
}

func (b remoteBackend) Resume(ctx context.Context, sessionID string) (*Session, error) {
	v, err := b.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if v.Status == string(store.StatusAbandoned) {
		return nil, fmt.Errorf("resume %s: %w", sessionID, session.ErrSessionAbandoned)
	}
	s := fromView(v)
	if s.Questions, err = b.Questions(ctx, sessionID); err != nil {
		return nil, err
	}
	if s.Answers, err = b.Answers(ctx, sessionID); err != nil {
		return nil, err
	}
	return s, nil
}

func fromView(v *server.SessionView) *Session {
	return &Session{
		ID:         v.ID,
		Type:       v.Type,
		Section:    v.Section,
		Track:      v.Track,
		BatchSize:  v.BatchSize,
		MaxBatches: v.MaxBatches,
	}
}
