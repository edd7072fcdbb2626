package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/cachecost"
	"github.com/abhisek/examforge/internal/session"
)

// DefaultClientTimeout bounds a single API call. Batch generation with
// retries and fallback can take a while.
const DefaultClientTimeout = 2 * time.Minute

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Code, e.Message)
}

// Unwrap maps error codes back to the session sentinels so callers can use
// errors.Is the same way against a local or remote service.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case CodeGenerationInProgress:
		return session.ErrGenerationInProgress
	case CodeSessionComplete:
		return session.ErrSessionComplete
	case CodeSessionAbandoned:
		return session.ErrSessionAbandoned
	case CodeOutOfSequence:
		return session.ErrOutOfSequence
	case CodeNotFound:
		return session.ErrNotFound
	case CodeInvalidChoice:
		return session.ErrInvalidChoice
	case CodeAlreadyAnswered:
		return session.ErrAlreadyAnswered
	}
	return nil
}

// Client talks to a running examforge server.
type Client struct {
	baseURL string
	http    *http.Client
	lang    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLanguage sets the Accept-Language of every request.
func WithLanguage(lang string) ClientOption {
	return func(c *Client) { c.lang = lang }
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession starts a session on the server.
func (c *Client) CreateSession(ctx context.Context, typ batch.SessionType, section batch.Section, track batch.Track) (*SessionView, error) {
	var out struct {
		Session SessionView `json:"session"`
	}
	req := CreateSessionRequest{Type: typ, Section: section, Track: track}
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &out); err != nil {
		return nil, err
	}
	return &out.Session, nil
}

// GetSession fetches a session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionView, error) {
	var out struct {
		Session SessionView `json:"session"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID, nil, &out); err != nil {
		return nil, err
	}
	return &out.Session, nil
}

// Questions lists every question delivered in a session.
func (c *Client) Questions(ctx context.Context, sessionID string) ([]batch.SessionQuestion, error) {
	var out struct {
		Questions []batch.SessionQuestion `json:"questions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID+"/questions", nil, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// Answers lists the recorded answers of a session.
func (c *Client) Answers(ctx context.Context, sessionID string) ([]batch.Answer, error) {
	var out struct {
		Answers []batch.Answer `json:"answers"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID+"/answers", nil, &out); err != nil {
		return nil, err
	}
	return out.Answers, nil
}

// NextBatch requests batch batchIndex of a session.
func (c *Client) NextBatch(ctx context.Context, sessionID string, batchIndex int) (*session.Delivery, error) {
	var d session.Delivery
	path := fmt.Sprintf("/api/sessions/%s/batches/%d", sessionID, batchIndex)
	if err := c.do(ctx, http.MethodPost, path, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Answer records an answer.
func (c *Client) Answer(ctx context.Context, sessionID string, questionIndex, chosen int) (*batch.Answer, error) {
	var out struct {
		Answer batch.Answer `json:"answer"`
	}
	req := AnswerRequest{QuestionIndex: questionIndex, ChosenIndex: chosen}
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/answers", req, &out); err != nil {
		return nil, err
	}
	return &out.Answer, nil
}

// Summary fetches the score sheet of a session.
func (c *Client) Summary(ctx context.Context, sessionID string) (*session.Summary, error) {
	var sum session.Summary
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID+"/summary", nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// Abandon marks a session abandoned.
func (c *Client) Abandon(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+sessionID, nil, nil)
}

// CacheMetrics fetches the server's cache counters. With reset set the
// server zeroes them and returns the values from before the reset.
func (c *Client) CacheMetrics(ctx context.Context, reset bool) (*cachecost.CacheMetrics, error) {
	method, path := http.MethodGet, "/api/metrics/cache"
	if reset {
		method, path = http.MethodPost, "/api/metrics/cache/reset"
	}
	var m cachecost.CacheMetrics
	if err := c.do(ctx, method, path, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb ErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil {
			apiErr.Code = eb.Error.Code
			apiErr.Message = eb.Error.Message
		}
		if apiErr.Code == "" && resp.StatusCode == http.StatusConflict {
			apiErr.Code = CodeGenerationInProgress
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
