package summary

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/examforge/internal/i18n"
	"github.com/abhisek/examforge/internal/router"
	"github.com/abhisek/examforge/internal/screen"
	"github.com/abhisek/examforge/internal/session"
	"github.com/abhisek/examforge/internal/ui/components"
	"github.com/abhisek/examforge/internal/ui/layout"
	"github.com/abhisek/examforge/internal/ui/theme"
)

// SummaryScreen displays the score sheet of a session.
type SummaryScreen struct {
	ctx     context.Context
	summary *session.Summary
}

var _ screen.Screen = (*SummaryScreen)(nil)
var _ screen.KeyHintProvider = (*SummaryScreen)(nil)

// New creates a new SummaryScreen.
func New(ctx context.Context, summary *session.Summary) *SummaryScreen {
	return &SummaryScreen{ctx: ctx, summary: summary}
}

func (s *SummaryScreen) Init() tea.Cmd {
	return nil
}

func (s *SummaryScreen) Title() string {
	return i18n.T(s.ctx, "SessionSummary")
}

func (s *SummaryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Continue"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *SummaryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
	}
	return s, nil
}

func (s *SummaryScreen) View(width, height int) string {
	sum := s.summary
	if sum == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString(theme.Centered(theme.Title, width, i18n.T(s.ctx, "SessionSummary")))
	b.WriteString("\n")
	b.WriteString(theme.Centered(theme.Dimmed, width, sum.SessionID))
	b.WriteString("\n\n")

	score := i18n.Td(s.ctx, "ScoreLine", map[string]any{"Correct": sum.Correct, "Answered": sum.Answered})
	b.WriteString(theme.Centered(theme.Body, width, fmt.Sprintf("%s   (%.0f%%)", score, sum.Accuracy*100)))
	b.WriteString("\n")
	b.WriteString(theme.Centered(theme.Dimmed, width, i18n.Tp(s.ctx, "QuestionsAnswered", sum.Answered)))
	b.WriteString("\n\n")

	if len(sum.Topics) == 0 {
		return b.String()
	}

	divider := lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", min(width-8, 60)))
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, theme.Dimmed.Render(i18n.T(s.ctx, "Topics"))))
	b.WriteString("\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, divider))
	b.WriteString("\n\n")

	barWidth := min(width-8, 60)
	for _, tr := range sum.Topics {
		if tr.Attempted == 0 {
			continue
		}
		label := fmt.Sprintf("%-28s %d/%d", tr.Topic, tr.Correct, tr.Attempted)
		bar := components.NewProgressBar(label, tr.Correct, tr.Attempted, barWidth)
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, bar.View()))
		b.WriteString("\n")
	}

	return b.String()
}
