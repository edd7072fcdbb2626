package fallback

import (
	"sync"
	"time"
)

// DefaultResetWindow is how long an advanced rotation stays advanced.
const DefaultResetWindow = 24 * time.Hour

// State is the shared model rotation. The current index only moves
// forward until the reset window elapses.
type State struct {
	mu        sync.Mutex
	models    []string
	index     int
	lastReset time.Time
	window    time.Duration
	now       func() time.Time
}

// StateOption configures a State.
type StateOption func(*State)

// WithClock replaces the clock.
func WithClock(now func() time.Time) StateOption {
	return func(s *State) { s.now = now }
}

// WithResetWindow overrides the 24h reset window.
func WithResetWindow(d time.Duration) StateOption {
	return func(s *State) { s.window = d }
}

// NewState creates a rotation over models, starting at the first.
func NewState(models []string, opts ...StateOption) *State {
	s := &State{
		models: append([]string(nil), models...),
		window: DefaultResetWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastReset = s.now()
	return s
}

// Models returns the ordered model list.
func (s *State) Models() []string {
	return append([]string(nil), s.models...)
}

// Current returns the current index. It equals len(Models()) once every
// model has been exhausted.
func (s *State) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Advance moves the index past from, if no other caller already did.
// It returns the resulting index.
func (s *State) Advance(from int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == from && s.index < len(s.models) {
		s.index++
	}
	return s.index
}

// Reset returns the rotation to the first model.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
	s.lastReset = s.now()
}

// ResetIfExpired resets the rotation when the window has elapsed since
// the last reset. It reports whether a reset happened.
func (s *State) ResetIfExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastReset) < s.window {
		return false
	}
	s.index = 0
	s.lastReset = now
	return true
}
