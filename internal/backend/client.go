// Package backend is the HTTP client for the assessment backend: session
// start, answer submission over a server-sent event stream, close and
// results.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// StartPrompt is sent as the first assistant query to obtain question one.
	StartPrompt = "Start assessment"

	defaultTimeout       = 30 * time.Second
	defaultOverallStatus = "On track"
	confidenceSure       = "sure"
	maxErrorBody         = 4 << 10
)

// Options configure a Client.
type Options struct {
	// ResultsBaseURL is the public results page; the session id is appended
	// as a query parameter to form the result reference.
	ResultsBaseURL string
	// HTTPClient overrides the default traced client.
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client talks to the assessment backend over HTTP.
type Client struct {
	baseURL        string
	resultsBaseURL string
	http           *http.Client
	logger         *slog.Logger
}

// New creates a Client for baseURL.
func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		resultsBaseURL: opts.ResultsBaseURL,
		http:           hc,
		logger:         logger,
	}
}

type startRequest struct {
	ChildName        string `json:"child_name"`
	DOB              string `json:"dob"`
	GestationalWeeks *int   `json:"gestational_weeks,omitempty"`
	Locale           string `json:"locale"`
}

type startResponse struct {
	SessionID              string   `json:"session_id"`
	ChildName              string   `json:"child_name"`
	ChronologicalAgeMonths float64  `json:"chronological_age_months"`
	CorrectedAgeMonths     *float64 `json:"corrected_age_months"`
	UsingCorrectedAge      bool     `json:"using_corrected_age"`
	AgeBand                string   `json:"age_band"`
	Locale                 string   `json:"locale"`
}

type queryRequest struct {
	SessionID          string `json:"session_id"`
	UserMessage        string `json:"user_message"`
	AnswerCode         string `json:"answer_code,omitempty"`
	ConfidenceOverride string `json:"confidence_override,omitempty"`
}

type closeRequest struct {
	SessionID string `json:"session_id"`
}

type closeResponse struct {
	Message          string   `json:"message"`
	TotalQuestions   int      `json:"total_questions"`
	TotalTimeSeconds float64  `json:"total_time_seconds"`
	DomainsAssessed  []string `json:"domains_assessed"`
}

type resultsResponse struct {
	AgeMonths         float64 `json:"age_months"`
	UsingCorrectedAge bool    `json:"using_corrected_age"`
	OverallStatus     string  `json:"overall_status"`
}

// Start opens a backend session for the profile and fetches the first question.
func (c *Client) Start(ctx context.Context, req domain.StartRequest) (domain.StartResult, error) {
	const op = "start"
	if err := req.Profile.Validate(); err != nil {
		return domain.StartResult{}, &Error{Op: op, Kind: KindPermanent, Err: err}
	}

	body := startRequest{
		ChildName: req.Profile.Name,
		DOB:       req.Profile.DateOfBirth.String(),
		Locale:    req.Language,
	}
	if req.Profile.Premature != nil && *req.Profile.Premature {
		body.GestationalWeeks = req.Profile.GestationalWeeks
	}

	var started startResponse
	if err := c.postJSON(ctx, op, "/session/start", req.AttemptID, body, &started); err != nil {
		return domain.StartResult{}, err
	}
	if started.SessionID == "" {
		return domain.StartResult{}, &Error{Op: op, Kind: KindPermanent, Err: fmt.Errorf("response has no session_id")}
	}
	c.logger.Info("Started backend session", "session_id", started.SessionID, "attempt_id", req.AttemptID, "age_band", started.AgeBand)

	msg, err := c.query(ctx, queryRequest{SessionID: started.SessionID, UserMessage: StartPrompt}, req.AttemptID)
	if err != nil {
		return domain.StartResult{}, err
	}
	if msg.Content == "" {
		return domain.StartResult{}, &Error{Op: "query", Kind: KindTransient, Err: fmt.Errorf("empty first question")}
	}
	return domain.StartResult{SessionID: started.SessionID, Question: msg.Content}, nil
}

// SubmitAnswer forwards one answer and reports the next question or completion.
func (c *Client) SubmitAnswer(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResult, error) {
	msg, err := c.query(ctx, queryRequest{
		SessionID:          req.SessionID,
		UserMessage:        req.Label,
		AnswerCode:         req.Answer,
		ConfidenceOverride: confidenceSure,
	}, req.IdempotencyKey)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if msg.IsFinal {
		return domain.AnswerResult{Completed: true}, nil
	}
	return domain.AnswerResult{Question: msg.Content}, nil
}

// Close ends the session, triggers scoring and returns the result summary.
func (c *Client) Close(ctx context.Context, sessionID string) (domain.AssessmentResult, error) {
	var closed closeResponse
	if err := c.postJSON(ctx, "close", "/session/close", "", closeRequest{SessionID: sessionID}, &closed); err != nil {
		return domain.AssessmentResult{}, err
	}

	var results resultsResponse
	q := url.Values{"session_id": {sessionID}}
	if err := c.getJSON(ctx, "results", "/results?"+q.Encode(), &results); err != nil {
		return domain.AssessmentResult{}, err
	}
	if results.OverallStatus == "" {
		results.OverallStatus = defaultOverallStatus
	}

	c.logger.Info("Closed backend session", "session_id", sessionID, "total_questions", closed.TotalQuestions)
	return domain.AssessmentResult{
		Reference:         c.ResultsURL(sessionID),
		TotalQuestions:    closed.TotalQuestions,
		AgeMonths:         results.AgeMonths,
		UsingCorrectedAge: results.UsingCorrectedAge,
		OverallStatus:     results.OverallStatus,
	}, nil
}

// ResultsURL is the public results page for a session.
func (c *Client) ResultsURL(sessionID string) string {
	sep := "?"
	if strings.Contains(c.resultsBaseURL, "?") {
		sep = "&"
	}
	return c.resultsBaseURL + sep + url.Values{"session_id": {sessionID}}.Encode()
}

// Health checks the backend liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError("health", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return statusError("health", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}

func (c *Client) query(ctx context.Context, body queryRequest, idempotencyKey string) (assistantMessage, error) {
	const op = "query"
	resp, err := c.do(ctx, op, http.MethodPost, "/assistant/query", idempotencyKey, body)
	if err != nil {
		return assistantMessage{}, err
	}
	defer resp.Body.Close()

	msg, err := readAssistantStream(resp.Body)
	if err != nil {
		return assistantMessage{}, transportError(op, err)
	}
	c.logger.Debug("Assistant reply received", "session_id", body.SessionID, "is_final", msg.IsFinal)
	return msg, nil
}

func (c *Client) postJSON(ctx context.Context, op, path, idempotencyKey string, body, out any) error {
	resp, err := c.do(ctx, op, http.MethodPost, path, idempotencyKey, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return decodeError(op, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return decodeError(op, err)
	}
	return nil
}

// do sends a request and returns the response only for 2xx statuses.
func (c *Client) do(ctx context.Context, op, method, path, idempotencyKey string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Op: op, Kind: KindPermanent, Err: fmt.Errorf("marshal request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindPermanent, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if op == "query" {
		req.Header.Set("Accept", "text/event-stream")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn("Backend request failed", "op", op, "status", resp.StatusCode)
		return nil, statusError(op, resp.StatusCode, text)
	}
	return resp, nil
}
