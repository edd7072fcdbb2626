package practice

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/examforge/internal/i18n"
	"github.com/abhisek/examforge/internal/ui/components"
	"github.com/abhisek/examforge/internal/ui/theme"
)

func (s *PracticeScreen) View(width, height int) string {
	switch {
	case s.errMsg != "":
		return "\n\n" + theme.Centered(theme.Incorrect, width, s.errMsg) + "\n\n" +
			theme.Centered(theme.Hint, width, i18n.T(s.ctx, "PressEnter"))
	case s.confirmingQuit:
		return s.renderQuitConfirm(width)
	case s.ending:
		return "\n\n" + theme.Centered(theme.Dimmed, width, i18n.T(s.ctx, "SessionOver"))
	case s.waiting:
		return s.renderWaiting(width)
	case s.question == nil:
		return "\n\n" + theme.Centered(theme.Dimmed, width, i18n.T(s.ctx, "StartingSession"))
	}
	return s.renderQuestion(width)
}

func (s *PracticeScreen) renderQuestion(width int) string {
	q := s.question
	inner := min(width-8, 90)

	var b strings.Builder

	total := max(s.sched.Len(), s.index+1)
	counter := i18n.Td(s.ctx, "QuestionNofM", map[string]any{"N": s.index + 1, "Total": total})
	info := lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).Render(counter) +
		"   " + theme.Dimmed.Render(q.Topic+" · "+string(q.Difficulty))
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, info))
	b.WriteString("\n")

	bar := components.NewProgressBar("", s.index, s.sess.BatchSize*s.sess.MaxBatches, inner)
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, bar.View()))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, s.mc.View(inner)))

	if s.showingFeedback {
		b.WriteString("\n")
		b.WriteString(s.renderFeedback(width, inner))
	} else {
		b.WriteString("\n")
		b.WriteString(theme.Centered(theme.Hint, width, i18n.T(s.ctx, "HelpChoose")))
	}

	return b.String()
}

func (s *PracticeScreen) renderFeedback(width, inner int) string {
	var b strings.Builder

	if s.mc.IsCorrect() {
		b.WriteString(theme.Centered(theme.Correct, width, i18n.T(s.ctx, "Correct")))
	} else {
		msg := i18n.Td(s.ctx, "Incorrect", map[string]any{"Answer": s.mc.CorrectLabel()})
		b.WriteString(theme.Centered(theme.Incorrect, width, msg))
	}
	b.WriteString("\n\n")

	if exp := s.question.Explanation; exp != "" {
		block := theme.Dimmed.Render(i18n.T(s.ctx, "Explanation")) + "\n" +
			lipgloss.NewStyle().Width(inner).Foreground(theme.Text).Render(exp)
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, block))
		b.WriteString("\n\n")
	}

	b.WriteString(theme.Centered(theme.Hint, width, i18n.T(s.ctx, "PressEnter")))
	return b.String()
}

func (s *PracticeScreen) renderWaiting(width int) string {
	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(theme.Centered(theme.Dimmed, width, i18n.T(s.ctx, "WaitingForQuestions")))
	if s.notice != "" && !s.sched.Pending() {
		b.WriteString("\n\n")
		b.WriteString(theme.Centered(theme.Notice, width, i18n.T(s.ctx, "RetryHint")))
	}
	return b.String()
}

func (s *PracticeScreen) renderQuitConfirm(width int) string {
	var b strings.Builder
	b.WriteString("\n\n\n")
	b.WriteString(theme.Centered(lipgloss.NewStyle().Foreground(theme.Text).Bold(true), width, i18n.T(s.ctx, "QuitConfirm")))
	b.WriteString("\n")
	b.WriteString(theme.Centered(theme.Dimmed, width,
		i18n.Tp(s.ctx, "QuestionsAnswered", s.answered)))
	b.WriteString("\n\n")
	b.WriteString(theme.Centered(lipgloss.NewStyle().Foreground(theme.Success), width, i18n.T(s.ctx, "QuitYes")))
	b.WriteString("\n")
	b.WriteString(theme.Centered(lipgloss.NewStyle().Foreground(theme.Primary), width, i18n.T(s.ctx, "QuitNo")))
	return b.String()
}
