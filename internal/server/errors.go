package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/abhisek/examforge/internal/generation"
	"github.com/abhisek/examforge/internal/i18n"
	"github.com/abhisek/examforge/internal/session"
)

// ErrorBody is the wire form of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable code and a localized message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Codes returned in ErrorDetail.Code.
const (
	CodeGenerationInProgress = "generation_in_progress"
	CodeSessionComplete      = "session_complete"
	CodeSessionAbandoned     = "session_abandoned"
	CodeOutOfSequence        = "out_of_sequence"
	CodeNotFound             = "not_found"
	CodeInvalidChoice        = "invalid_choice"
	CodeAlreadyAnswered      = "already_answered"
	CodeBadRequest           = "bad_request"
	CodeInternal             = "internal"
)

var terminalMessages = map[generation.TerminalKind]string{
	generation.KindMalformed:             "ErrMalformed",
	generation.KindTransient:             "ErrTransient",
	generation.KindRateLimited:           "ErrRateLimited",
	generation.KindAllProvidersExhausted: "ErrAllProvidersExhausted",
	generation.KindCanceled:              "ErrCanceled",
}

// classify maps an error to its status, code and message ID.
func classify(err error) (status int, code, msgID string) {
	var te *generation.TerminalError
	switch {
	case isBadRequest(err), errors.Is(err, session.ErrInvalidSession):
		return http.StatusBadRequest, CodeBadRequest, "ErrBadRequest"
	case errors.Is(err, session.ErrGenerationInProgress):
		return http.StatusConflict, CodeGenerationInProgress, "ErrGenerationInProgress"
	case errors.Is(err, session.ErrSessionComplete):
		return http.StatusUnprocessableEntity, CodeSessionComplete, "ErrSessionComplete"
	case errors.Is(err, session.ErrSessionAbandoned):
		return http.StatusUnprocessableEntity, CodeSessionAbandoned, "ErrSessionAbandoned"
	case errors.Is(err, session.ErrOutOfSequence):
		return http.StatusUnprocessableEntity, CodeOutOfSequence, "ErrOutOfSequence"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "ErrNotFound"
	case errors.Is(err, session.ErrInvalidChoice):
		return http.StatusBadRequest, CodeInvalidChoice, "ErrInvalidChoice"
	case errors.Is(err, session.ErrAlreadyAnswered):
		return http.StatusConflict, CodeAlreadyAnswered, "ErrAlreadyAnswered"
	case errors.As(err, &te):
		status := http.StatusBadGateway
		if te.Kind == generation.KindCanceled {
			status = http.StatusServiceUnavailable
		}
		return status, string(te.Kind), terminalMessages[te.Kind]
	default:
		return http.StatusInternalServerError, CodeInternal, "ErrInternal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msgID := classify(err)

	log := s.logger.With("request_id", middleware.GetReqID(r.Context()), "code", code, "error", err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status)
	} else {
		log.Debug("request rejected", "status", status)
	}

	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: i18n.T(r.Context(), msgID)}})
}

// MessageID returns the i18n message ID that describes err to a reader.
// Errors decoded from a remote server keep their original meaning.
func MessageID(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if id, ok := terminalMessages[generation.TerminalKind(apiErr.Code)]; ok {
			return id
		}
	}
	_, _, id := classify(err)
	return id
}
