// Package setup is the first screen: pick a section and session type, or
// resume an earlier session by ID.
package setup

import (
	"context"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/i18n"
	pr "github.com/abhisek/examforge/internal/practice"
	"github.com/abhisek/examforge/internal/prefetch"
	"github.com/abhisek/examforge/internal/router"
	"github.com/abhisek/examforge/internal/screen"
	practicescreen "github.com/abhisek/examforge/internal/screens/practice"
	"github.com/abhisek/examforge/internal/server"
	"github.com/abhisek/examforge/internal/ui/components"
	"github.com/abhisek/examforge/internal/ui/layout"
	"github.com/abhisek/examforge/internal/ui/theme"
)

// sessionReadyMsg is sent when a session was started or resumed.
type sessionReadyMsg struct {
	Session *pr.Session
	Err     error
}

// SetupScreen lists the session choices.
type SetupScreen struct {
	ctx     context.Context
	backend pr.Backend
	track   batch.Track
	cfg     prefetch.Config
	opts    []prefetch.Option

	menu     components.Menu
	input    components.TextInput
	resumeID string
	resuming bool
	busy     bool
	errMsg   string
}

var _ screen.Screen = (*SetupScreen)(nil)
var _ screen.KeyHintProvider = (*SetupScreen)(nil)

// New creates the setup screen. Sessions are created on track and
// practiced with cfg.
func New(ctx context.Context, backend pr.Backend, track batch.Track, cfg prefetch.Config, opts ...prefetch.Option) *SetupScreen {
	s := &SetupScreen{
		ctx:     ctx,
		backend: backend,
		track:   track,
		cfg:     cfg,
		opts:    opts,
	}
	s.menu = components.NewMenu([]components.MenuItem{
		{Label: i18n.T(ctx, "MenuQuantPractice"), Action: s.start(batch.SessionPractice, batch.SectionQuantitative)},
		{Label: i18n.T(ctx, "MenuVerbalPractice"), Action: s.start(batch.SessionPractice, batch.SectionVerbal)},
		{Label: i18n.T(ctx, "MenuQuantFull"), Action: s.start(batch.SessionFull, batch.SectionQuantitative)},
		{Label: i18n.T(ctx, "MenuVerbalFull"), Action: s.start(batch.SessionFull, batch.SectionVerbal)},
		{Label: i18n.T(ctx, "MenuResume"), Action: s.beginResume},
	})
	return s
}

// ResumeOnStart makes the screen resume sessionID as soon as it is shown.
func (s *SetupScreen) ResumeOnStart(sessionID string) *SetupScreen {
	s.resumeID = sessionID
	return s
}

func (s *SetupScreen) Init() tea.Cmd {
	if s.resumeID != "" {
		return s.resume(s.resumeID)
	}
	return nil
}

func (s *SetupScreen) Title() string {
	return i18n.T(s.ctx, "SetupTitle")
}

func (s *SetupScreen) KeyHints() []layout.KeyHint {
	if s.resuming {
		return []layout.KeyHint{
			{Key: "Enter", Description: "Resume"},
			{Key: "Esc", Description: "Cancel"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Select"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *SetupScreen) start(typ batch.SessionType, section batch.Section) func() tea.Cmd {
	return func() tea.Cmd {
		s.busy = true
		s.errMsg = ""
		backend, ctx, track := s.backend, s.ctx, s.track
		return func() tea.Msg {
			sess, err := backend.Start(ctx, typ, section, track)
			return sessionReadyMsg{Session: sess, Err: err}
		}
	}
}

func (s *SetupScreen) beginResume() tea.Cmd {
	s.resuming = true
	s.errMsg = ""
	s.input = components.NewTextInput("00000000-0000-0000-0000-000000000000", 64)
	return s.input.Init()
}

func (s *SetupScreen) resume(id string) tea.Cmd {
	s.busy = true
	backend, ctx := s.backend, s.ctx
	return func() tea.Msg {
		sess, err := backend.Resume(ctx, id)
		return sessionReadyMsg{Session: sess, Err: err}
	}
}

func (s *SetupScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionReadyMsg:
		s.busy = false
		if msg.Err != nil {
			s.errMsg = i18n.T(s.ctx, server.MessageID(msg.Err))
			return s, nil
		}
		s.resuming = false
		next := practicescreen.New(s.ctx, s.backend, msg.Session, s.cfg, s.opts...)
		return s, func() tea.Msg { return router.PushScreenMsg{Screen: next} }

	case tea.KeyMsg:
		if s.busy {
			return s, nil
		}
		if s.resuming {
			switch msg.String() {
			case "esc":
				s.resuming = false
				return s, nil
			case "enter":
				if id := s.input.Value(); id != "" {
					return s, s.resume(id)
				}
				return s, nil
			}
			var cmd tea.Cmd
			s.input, cmd = s.input.Update(msg)
			return s, cmd
		}
		var cmd tea.Cmd
		s.menu, cmd = s.menu.Update(msg)
		return s, cmd
	}

	if s.resuming {
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *SetupScreen) View(width, height int) string {
	var body string
	body += theme.Centered(theme.Title, width, i18n.T(s.ctx, "AppTitle")) + "\n"
	body += theme.Centered(theme.Subtitle, width, i18n.T(s.ctx, "SetupPrompt")+" · "+string(s.track)) + "\n\n"

	if s.resuming {
		line := i18n.T(s.ctx, "ResumePrompt") + " " + s.input.View()
		body += lipgloss.PlaceHorizontal(width, lipgloss.Center, line) + "\n"
	} else {
		body += lipgloss.PlaceHorizontal(width, lipgloss.Center, s.menu.View()) + "\n"
	}

	switch {
	case s.busy:
		body += "\n" + theme.Centered(theme.Dimmed, width, i18n.T(s.ctx, "StartingSession"))
	case s.errMsg != "":
		body += "\n" + theme.Centered(theme.Incorrect, width, s.errMsg)
	}
	return body
}
