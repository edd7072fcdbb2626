package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/examforge/internal/ui/layout"
)

// Screen is one page of the practice app.
type Screen interface {
	// Init returns an initial command when the screen is first shown.
	Init() tea.Cmd

	// Update handles messages and returns updated screen + command.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the screen content (excluding header/footer).
	View(width, height int) string

	// Title returns the screen name for the header.
	Title() string
}

// KeyHintProvider is implemented by screens with their own footer hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// StatusProvider is implemented by screens that show a status in the
// header and a notice in the footer.
type StatusProvider interface {
	Status() string
	Notice() string
}

// Closer is implemented by screens that own background work. Close is
// called when the screen leaves the stack.
type Closer interface {
	Close()
}
