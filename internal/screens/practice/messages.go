package practice

import (
	"github.com/abhisek/examforge/internal/prefetch"
	"github.com/abhisek/examforge/internal/session"
)

// batchDoneMsg is sent when a prefetch request finishes.
type batchDoneMsg struct {
	Req *prefetch.Request
	Err error
}

// answerSavedMsg is sent when an answer has been recorded by the backend.
type answerSavedMsg struct {
	Index int
	Err   error
}

// summaryReadyMsg is sent when the session summary has been fetched.
type summaryReadyMsg struct {
	Summary *session.Summary
	Err     error
}
