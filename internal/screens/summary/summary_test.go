package summary

import (
	"context"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/examforge/internal/router"
	"github.com/abhisek/examforge/internal/session"
)

func testSummary() *session.Summary {
	return &session.Summary{
		SessionID:      "sess-1",
		TotalQuestions: 10,
		Answered:       8,
		Correct:        6,
		Accuracy:       0.75,
		Topics: []session.TopicResult{
			{Topic: "algebra", Attempted: 5, Correct: 4},
			{Topic: "geometry", Attempted: 3, Correct: 2},
			{Topic: "statistics", Attempted: 0, Correct: 0},
		},
	}
}

func TestSummaryScreen_Title(t *testing.T) {
	s := New(context.Background(), testSummary())
	if s.Title() != "Session Summary" {
		t.Errorf("Title = %q, want %q", s.Title(), "Session Summary")
	}
}

func TestSummaryScreen_Display(t *testing.T) {
	s := New(context.Background(), testSummary())
	view := s.View(100, 30)
	for _, want := range []string{"6 of 8 correct", "75%", "8 questions answered", "algebra", "geometry"} {
		if !strings.Contains(view, want) {
			t.Errorf("summary view missing %q", want)
		}
	}
	if strings.Contains(view, "statistics") {
		t.Error("topics without attempts should be hidden")
	}
}

func TestSummaryScreen_Nil(t *testing.T) {
	if New(context.Background(), nil).View(80, 24) != "" {
		t.Error("expected empty view for nil summary")
	}
}

func TestSummaryScreen_Navigation(t *testing.T) {
	for _, code := range []rune{tea.KeyEnter, tea.KeyEscape} {
		s := New(context.Background(), testSummary())
		_, cmd := s.Update(tea.KeyPressMsg{Code: code})
		if cmd == nil {
			t.Fatalf("expected a command for key %v", code)
		}
		if _, ok := cmd().(router.PopScreenMsg); !ok {
			t.Errorf("expected PopScreenMsg for key %v", code)
		}
	}
}

func TestSummaryScreen_KeyHints(t *testing.T) {
	s := New(context.Background(), testSummary())
	if len(s.KeyHints()) != 2 {
		t.Errorf("KeyHints length = %d, want 2", len(s.KeyHints()))
	}
}
