// Package server exposes the session service over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/i18n"
	"github.com/abhisek/examforge/internal/session"
	"github.com/abhisek/examforge/internal/store"
)

// Server holds the HTTP handlers' dependencies.
type Server struct {
	svc    *session.Service
	lang   string
	logger *slog.Logger
}

// New creates a Server. lang is the default language of error messages.
func New(svc *session.Service, lang string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, lang: lang, logger: logger}
}

// Handler returns the full router with middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(i18n.Middleware(s.lang))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", s.Routes)
	return r
}

// Routes registers the API routes on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/sessions", s.handleCreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Delete("/", s.handleAbandonSession)
		r.Post("/batches/{batchIndex}", s.handleNextBatch)
		r.Get("/questions", s.handleQuestions)
		r.Get("/answers", s.handleAnswers)
		r.Post("/answers", s.handleAnswer)
		r.Get("/summary", s.handleSummary)
	})
	r.Get("/metrics/cache", s.handleCacheMetrics)
	r.Post("/metrics/cache/reset", s.handleResetCacheMetrics)
}

// SessionView is the wire form of a session.
type SessionView struct {
	ID             string            `json:"id"`
	Type           batch.SessionType `json:"type"`
	Section        batch.Section     `json:"section"`
	Track          batch.Track       `json:"track"`
	BatchSize      int               `json:"batchSize"`
	MaxBatches     int               `json:"maxBatches"`
	LastBatchIndex int               `json:"lastBatchIndex"`
	GeneratedIDs   []string          `json:"generatedIds"`
	Status         string            `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func viewOf(rec *store.SessionRecord) SessionView {
	return SessionView{
		ID:             rec.ID,
		Type:           rec.Type,
		Section:        rec.Section,
		Track:          rec.Track,
		BatchSize:      rec.BatchSize,
		MaxBatches:     rec.MaxBatches,
		LastBatchIndex: rec.Context.LastBatchIndex,
		GeneratedIDs:   rec.Context.GeneratedIDs,
		Status:         string(rec.Status),
		CreatedAt:      rec.CreatedAt,
	}
}

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	Type    batch.SessionType `json:"type"`
	Section batch.Section     `json:"section"`
	Track   batch.Track       `json:"track"`
}

// AnswerRequest is the body of POST /api/sessions/{id}/answers.
type AnswerRequest struct {
	QuestionIndex int `json:"questionIndex"`
	ChosenIndex   int `json:"chosenIndex"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errBadRequest{err})
		return
	}
	if req.Type == "" {
		req.Type = batch.SessionPractice
	}

	rec, err := s.svc.Create(r.Context(), req.Type, req.Section, req.Track)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": viewOf(rec)})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": viewOf(rec)})
}

func (s *Server) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Abandon(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNextBatch(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "batchIndex"))
	if err != nil {
		s.writeError(w, r, errBadRequest{err})
		return
	}

	d, err := s.svc.NextBatch(r.Context(), chi.URLParam(r, "sessionID"), idx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := s.svc.Questions(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if qs == nil {
		qs = []batch.SessionQuestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": qs})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errBadRequest{err})
		return
	}

	a, err := s.svc.Answer(r.Context(), chi.URLParam(r, "sessionID"), req.QuestionIndex, req.ChosenIndex)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"answer": a})
}

func (s *Server) handleAnswers(w http.ResponseWriter, r *http.Request) {
	as, err := s.svc.Answers(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if as == nil {
		as = []batch.Answer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"answers": as})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleCacheMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.CacheMetrics())
}

// handleResetCacheMetrics returns the counters as they were before the reset.
func (s *Server) handleResetCacheMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.svc.CacheMetrics()
	s.svc.ResetCacheMetrics()
	writeJSON(w, http.StatusOK, m)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return e.err.Error() }
func (e errBadRequest) Unwrap() error { return e.err }

func isBadRequest(err error) bool {
	var br errBadRequest
	return errors.As(err, &br)
}
