package components

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
)

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func TestMultiChoice_ArrowsAndEnter(t *testing.T) {
	mc := NewMultiChoice("2 + 2 = ?", []string{"3", "4", "5", "6"}, 1)

	mc, _ = mc.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	mc, _ = mc.Update(tea.KeyPressMsg{Code: tea.KeyEnter})

	if !mc.Submitted {
		t.Fatal("expected submitted after Enter")
	}
	if mc.ChosenIndex != 1 {
		t.Errorf("ChosenIndex = %d, want 1", mc.ChosenIndex)
	}
	if !mc.IsCorrect() {
		t.Error("expected correct answer")
	}

	// Input after submit is ignored.
	mc, _ = mc.Update(keyPress('3'))
	if mc.ChosenIndex != 1 {
		t.Errorf("ChosenIndex changed after submit: %d", mc.ChosenIndex)
	}
}

func TestMultiChoice_DirectKeys(t *testing.T) {
	tests := []struct {
		key  rune
		want int
	}{
		{'1', 0}, {'4', 3}, {'b', 1}, {'d', 3},
	}
	for _, tt := range tests {
		mc := NewMultiChoice("q", []string{"a", "b", "c", "d"}, 0)
		mc, _ = mc.Update(keyPress(tt.key))
		if !mc.Submitted || mc.ChosenIndex != tt.want {
			t.Errorf("key %q: submitted=%v chosen=%d, want %d", tt.key, mc.Submitted, mc.ChosenIndex, tt.want)
		}
	}

	mc := NewMultiChoice("q", []string{"a", "b", "c", "d"}, 0)
	mc, _ = mc.Update(keyPress('9'))
	if mc.Submitted {
		t.Error("9 should not submit")
	}
}

func TestMultiChoice_View(t *testing.T) {
	mc := NewMultiChoice("Which is prime?", []string{"4", "6", "7", "9"}, 2)
	view := mc.View(60)
	for _, want := range []string{"Which is prime?", "A)", "D)", "7"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if mc.CorrectLabel() != "C" {
		t.Errorf("CorrectLabel = %q, want C", mc.CorrectLabel())
	}
}

func TestMenu_SkipsDisabled(t *testing.T) {
	var picked string
	m := NewMenu([]MenuItem{
		{Label: "off", Disabled: true},
		{Label: "one", Action: func() tea.Cmd { picked = "one"; return nil }},
		{Label: "off2", Disabled: true},
		{Label: "two", Action: func() tea.Cmd { picked = "two"; return nil }},
	})
	if m.Selected != 1 {
		t.Fatalf("Selected = %d, want 1", m.Selected)
	}

	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	if m.Selected != 3 {
		t.Fatalf("Selected = %d, want 3", m.Selected)
	}
	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	if m.Selected != 3 {
		t.Errorf("Selected moved past end: %d", m.Selected)
	}

	m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if picked != "two" {
		t.Errorf("picked = %q, want two", picked)
	}
}

func TestProgressBar(t *testing.T) {
	p := NewProgressBar("Progress", 3, 10, 40)
	if p.Percent != 0.3 {
		t.Errorf("Percent = %v, want 0.3", p.Percent)
	}
	if !strings.Contains(p.View(), "30%") {
		t.Error("expected 30% in view")
	}
	if NewProgressBar("", 1, 0, 10).Percent != 0 {
		t.Error("zero total should be 0%")
	}
}
