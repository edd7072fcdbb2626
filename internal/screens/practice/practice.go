// Package practice is the question-by-question practice screen. Batches
// are fetched ahead of the reader by a prefetch.Scheduler.
package practice

import (
	"context"
	"log/slog"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/i18n"
	pr "github.com/abhisek/examforge/internal/practice"
	"github.com/abhisek/examforge/internal/prefetch"
	"github.com/abhisek/examforge/internal/router"
	"github.com/abhisek/examforge/internal/screen"
	"github.com/abhisek/examforge/internal/screens/summary"
	"github.com/abhisek/examforge/internal/server"
	"github.com/abhisek/examforge/internal/ui/components"
	"github.com/abhisek/examforge/internal/ui/layout"
)

// PracticeScreen implements screen.Screen for a running session.
type PracticeScreen struct {
	ctx     context.Context
	backend pr.Backend
	sess    *pr.Session
	sched   *prefetch.Scheduler
	logger  *slog.Logger

	index    int
	question *batch.SessionQuestion
	mc       components.MultiChoice

	correct  int
	answered int

	showingFeedback bool
	confirmingQuit  bool
	waiting         bool
	ending          bool

	notice string
	errMsg string
}

var _ screen.Screen = (*PracticeScreen)(nil)
var _ screen.KeyHintProvider = (*PracticeScreen)(nil)
var _ screen.StatusProvider = (*PracticeScreen)(nil)
var _ screen.Closer = (*PracticeScreen)(nil)

// New creates a practice screen for sess. Questions and answers already in
// sess are loaded so a resumed session continues at its first unanswered
// question. cfg supplies the threshold and retry policy; the batch size
// and cap come from the session.
func New(ctx context.Context, backend pr.Backend, sess *pr.Session, cfg prefetch.Config, opts ...prefetch.Option) *PracticeScreen {
	cfg.BatchSize = sess.BatchSize
	cfg.MaxBatches = sess.MaxBatches

	s := &PracticeScreen{
		ctx:     ctx,
		backend: backend,
		sess:    sess,
		sched:   prefetch.NewScheduler(sess.ID, cfg, backend, opts...),
		logger:  slog.Default().With("session", sess.ID),
		index:   sess.Position(),
	}
	s.sched.Load(sess.Questions)
	for _, a := range sess.Answers {
		s.answered++
		if a.Correct {
			s.correct++
		}
	}
	return s
}

func (s *PracticeScreen) Init() tea.Cmd {
	return s.enterPosition()
}

func (s *PracticeScreen) Title() string {
	return string(s.sess.Section) + " · " + string(s.sess.Type)
}

func (s *PracticeScreen) Status() string {
	return i18n.Td(s.ctx, "ScoreLine", map[string]any{"Correct": s.correct, "Answered": s.answered})
}

func (s *PracticeScreen) Notice() string {
	return s.notice
}

func (s *PracticeScreen) KeyHints() []layout.KeyHint {
	switch {
	case s.confirmingQuit:
		return []layout.KeyHint{
			{Key: "Y", Description: "End session"},
			{Key: "N", Description: "Keep going"},
		}
	case s.showingFeedback:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Next"},
			{Key: "Esc", Description: "End"},
		}
	case s.waiting:
		return []layout.KeyHint{
			{Key: "R", Description: "Retry"},
			{Key: "Esc", Description: "End"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Choose"},
		{Key: "1-4", Description: "Answer"},
		{Key: "Esc", Description: "End"},
	}
}

// Close stops prefetching. Requests already in flight finish and their
// results are dropped.
func (s *PracticeScreen) Close() {
	s.sched.Abandon()
}

func (s *PracticeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case batchDoneMsg:
		return s.handleBatchDone(msg)

	case answerSavedMsg:
		if msg.Err != nil {
			s.logger.Warn("answer not saved", "index", msg.Index, "error", msg.Err)
			s.notice = i18n.T(s.ctx, server.MessageID(msg.Err))
		}
		return s, nil

	case summaryReadyMsg:
		return s.handleSummaryReady(msg)

	case tea.KeyMsg:
		return s.handleKey(msg)
	}
	return s, nil
}

// enterPosition shows the question at the current index, or waits for the
// batch that will contain it, and gives the scheduler a chance to fetch
// ahead.
func (s *PracticeScreen) enterPosition() tea.Cmd {
	var cmds []tea.Cmd

	if req, ok := s.sched.OnPositionChanged(s.index); ok {
		cmds = append(cmds, s.fetch(req))
	}

	qs := s.sched.Questions()
	if s.index < len(qs) {
		q := qs[s.index]
		s.question = &q
		s.mc = components.NewMultiChoice(q.Stem, q.Choices, q.AnswerIndex)
		s.waiting = false
		return tea.Batch(cmds...)
	}

	s.question = nil
	if s.sched.Exhausted() {
		return s.finish(false)
	}
	s.waiting = true
	if req, ok := s.sched.Demand(); ok {
		cmds = append(cmds, s.fetch(req))
	}
	return tea.Batch(cmds...)
}

func (s *PracticeScreen) fetch(req *prefetch.Request) tea.Cmd {
	sched, ctx := s.sched, s.ctx
	return func() tea.Msg {
		return batchDoneMsg{Req: req, Err: sched.Execute(ctx, req)}
	}
}

func (s *PracticeScreen) handleBatchDone(msg batchDoneMsg) (screen.Screen, tea.Cmd) {
	if msg.Err != nil {
		s.notice = i18n.T(s.ctx, "PrefetchFailed") + " " + i18n.T(s.ctx, server.MessageID(msg.Err))
		return s, nil
	}
	s.notice = ""
	if s.waiting {
		return s, s.enterPosition()
	}
	return s, nil
}

func (s *PracticeScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()

	if s.errMsg != "" {
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	}
	if s.ending {
		return s, nil
	}

	if s.confirmingQuit {
		switch key {
		case "y", "Y":
			s.confirmingQuit = false
			return s, s.finish(true)
		case "n", "N", "esc":
			s.confirmingQuit = false
		}
		return s, nil
	}

	if key == "esc" {
		s.confirmingQuit = true
		return s, nil
	}

	switch {
	case s.showingFeedback:
		if key == "enter" || key == "space" {
			s.showingFeedback = false
			s.index++
			return s, s.enterPosition()
		}
	case s.waiting:
		if key == "r" {
			if req, ok := s.sched.Demand(); ok {
				s.notice = ""
				return s, s.fetch(req)
			}
		}
	case s.question != nil:
		var cmd tea.Cmd
		s.mc, cmd = s.mc.Update(msg)
		if s.mc.Submitted {
			return s, tea.Batch(cmd, s.submit())
		}
		return s, cmd
	}
	return s, nil
}

// submit scores the answer locally for immediate feedback and records it
// with the backend in the background.
func (s *PracticeScreen) submit() tea.Cmd {
	s.showingFeedback = true
	s.answered++
	if s.mc.IsCorrect() {
		s.correct++
	}

	backend, ctx, id := s.backend, s.ctx, s.sess.ID
	index, chosen := s.index, s.mc.ChosenIndex
	return func() tea.Msg {
		_, err := backend.Answer(ctx, id, index, chosen)
		return answerSavedMsg{Index: index, Err: err}
	}
}

// finish fetches the summary. abandon also ends the session on the
// backend so no further batches are generated for it.
func (s *PracticeScreen) finish(abandon bool) tea.Cmd {
	s.ending = true
	s.sched.Abandon()

	backend, ctx, id, logger := s.backend, s.ctx, s.sess.ID, s.logger
	return func() tea.Msg {
		if abandon {
			if err := backend.Abandon(ctx, id); err != nil {
				logger.Warn("abandon session", "error", err)
			}
		}
		sum, err := backend.Summary(ctx, id)
		return summaryReadyMsg{Summary: sum, Err: err}
	}
}

func (s *PracticeScreen) handleSummaryReady(msg summaryReadyMsg) (screen.Screen, tea.Cmd) {
	if msg.Err != nil {
		s.ending = false
		s.errMsg = i18n.T(s.ctx, server.MessageID(msg.Err))
		return s, nil
	}
	next := summary.New(s.ctx, msg.Summary)
	return s, func() tea.Msg { return router.ReplaceScreenMsg{Screen: next} }
}
