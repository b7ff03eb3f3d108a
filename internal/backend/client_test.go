package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
)

// kindOf returns the Kind of a *Error in err's chain, or 0.
func kindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}

type fakeBackend struct {
	mu      sync.Mutex
	queries []queryRequest
	keys    []string
	starts  []startRequest
	closes  int
	final   bool
	status  int
	stream  string
	results resultsResponse
}

func (f *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /session/start", func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode start: %v", err)
		}
		f.mu.Lock()
		f.starts = append(f.starts, req)
		f.keys = append(f.keys, r.Header.Get("Idempotency-Key"))
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(startResponse{SessionID: "sess-1", ChildName: req.ChildName, AgeBand: "12-18"})
	})
	mux.HandleFunc("POST /assistant/query", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode query: %v", err)
		}
		f.mu.Lock()
		f.queries = append(f.queries, req)
		f.keys = append(f.keys, r.Header.Get("Idempotency-Key"))
		status, stream, final := f.status, f.stream, f.final
		f.mu.Unlock()

		if status != 0 {
			http.Error(w, "upstream exploded", status)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		if stream != "" {
			_, _ = io.WriteString(w, stream)
			return
		}
		if final {
			_, _ = io.WriteString(w, "data: {\"content\":\"\",\"is_final\":true,\"metadata\":{\"questions\":12}}\n\n")
			return
		}
		_, _ = io.WriteString(w, "data: {\"content\":\"Does your child \"}\n\n")
		_, _ = io.WriteString(w, "data: {\"content\":\"point at objects?\"}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})
	mux.HandleFunc("POST /session/close", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.closes++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(closeResponse{Message: "closed", TotalQuestions: 12})
	})
	mux.HandleFunc("GET /results", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("session_id") != "sess-1" {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(f.results)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeBackend) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", Options{
		ResultsBaseURL: "https://brainytots.com/pages/assessment-results",
		HTTPClient:     srv.Client(),
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func testProfile(premature bool) domain.Profile {
	weeks := 32
	p := domain.Profile{
		Name:        "Aarav",
		DateOfBirth: domain.Date{Year: 2024, Month: time.March, Day: 15},
		Premature:   &premature,
	}
	if premature {
		p.GestationalWeeks = &weeks
	}
	return p
}

func TestStartSendsProfileAndFetchesFirstQuestion(t *testing.T) {
	f := &fakeBackend{}
	c := newTestClient(t, f)

	res, err := c.Start(context.Background(), domain.StartRequest{AttemptID: "att-1", Language: "hi", Profile: testProfile(true)})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.SessionID != "sess-1" || res.Question != "Does your child point at objects?" {
		t.Errorf("result = %+v", res)
	}

	got := f.starts[0]
	if got.ChildName != "Aarav" || got.DOB != "2024-03-15" || got.Locale != "hi" {
		t.Errorf("start body = %+v", got)
	}
	if got.GestationalWeeks == nil || *got.GestationalWeeks != 32 {
		t.Errorf("gestational weeks = %v", got.GestationalWeeks)
	}
	if len(f.queries) != 1 || f.queries[0].UserMessage != StartPrompt || f.queries[0].SessionID != "sess-1" {
		t.Errorf("first query = %+v", f.queries)
	}
	if f.keys[0] != "att-1" {
		t.Errorf("idempotency key = %q", f.keys[0])
	}
}

func TestStartOmitsWeeksForFullTerm(t *testing.T) {
	f := &fakeBackend{}
	c := newTestClient(t, f)

	if _, err := c.Start(context.Background(), domain.StartRequest{Language: "en", Profile: testProfile(false)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if f.starts[0].GestationalWeeks != nil {
		t.Errorf("gestational weeks sent for full-term child: %d", *f.starts[0].GestationalWeeks)
	}
}

func TestStartRejectsIncompleteProfile(t *testing.T) {
	c := newTestClient(t, &fakeBackend{})
	_, err := c.Start(context.Background(), domain.StartRequest{Profile: domain.Profile{Name: "Aarav"}})
	if kindOf(err) != KindPermanent {
		t.Fatalf("err = %v, want permanent", err)
	}
	if !errors.Is(err, domain.ErrIncompleteProfile) {
		t.Errorf("err = %v, want ErrIncompleteProfile in chain", err)
	}
}

func TestSubmitAnswer(t *testing.T) {
	f := &fakeBackend{}
	c := newTestClient(t, f)

	res, err := c.SubmitAnswer(context.Background(), domain.AnswerRequest{
		SessionID: "sess-1", Answer: "sometimes", Label: "Sometimes", IdempotencyKey: "att-1:wamid.9",
	})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.Completed || res.Question == "" {
		t.Errorf("result = %+v", res)
	}
	q := f.queries[0]
	if q.AnswerCode != "sometimes" || q.UserMessage != "Sometimes" || q.ConfidenceOverride != "sure" {
		t.Errorf("query body = %+v", q)
	}
	if f.keys[0] != "att-1:wamid.9" {
		t.Errorf("idempotency key = %q", f.keys[0])
	}

	f.final = true
	res, err = c.SubmitAnswer(context.Background(), domain.AnswerRequest{SessionID: "sess-1", Answer: "yes", Label: "Yes"})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if !res.Completed {
		t.Errorf("expected completion, got %+v", res)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			f := &fakeBackend{status: tt.status}
			c := newTestClient(t, f)
			_, err := c.SubmitAnswer(context.Background(), domain.AnswerRequest{SessionID: "sess-1", Answer: "yes"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := kindOf(err) == KindTransient; got != tt.transient {
				t.Errorf("transient = %v, want %v (%v)", got, tt.transient, err)
			}
			var be *Error
			if !errors.As(err, &be) || be.StatusCode != tt.status {
				t.Errorf("err = %#v", err)
			}
			if !strings.Contains(err.Error(), "upstream exploded") {
				t.Errorf("error body not preserved: %v", err)
			}
		})
	}
}

func TestTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	_, err := c.SubmitAnswer(context.Background(), domain.AnswerRequest{SessionID: "s"})
	if kindOf(err) != KindTransient {
		t.Errorf("connection refused should be transient: %v", err)
	}
}

func TestTimeoutIsTransient(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := New(srv.URL, Options{HTTPClient: srv.Client(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.SubmitAnswer(ctx, domain.AnswerRequest{SessionID: "s"}); kindOf(err) != KindTransient {
		t.Errorf("timeout should be transient: %v", err)
	}
}

func TestCloseFetchesResults(t *testing.T) {
	f := &fakeBackend{results: resultsResponse{AgeMonths: 18.46, UsingCorrectedAge: true}}
	c := newTestClient(t, f)

	res, err := c.Close(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.closes != 1 {
		t.Errorf("close calls = %d", f.closes)
	}
	want := domain.AssessmentResult{
		Reference:         "https://brainytots.com/pages/assessment-results?session_id=sess-1",
		TotalQuestions:    12,
		AgeMonths:         18.46,
		UsingCorrectedAge: true,
		OverallStatus:     "On track",
	}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
}

func TestResultsURL(t *testing.T) {
	c := New("http://backend", Options{ResultsBaseURL: "https://example.com/results?src=wa"})
	if got := c.ResultsURL("a b"); got != "https://example.com/results?src=wa&session_id=a+b" {
		t.Errorf("ResultsURL = %q", got)
	}
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, &fakeBackend{})
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}

func TestReadAssistantStream(t *testing.T) {
	tests := []struct {
		name      string
		stream    string
		content   string
		final     bool
		hasFields bool
	}{
		{
			name:    "accumulates chunks",
			stream:  "data: {\"content\":\"Hello \"}\n\ndata: {\"content\":\"there\"}\n\n",
			content: "Hello there",
		},
		{
			name:    "skips malformed and non-data lines",
			stream:  "event: message\ndata: not-json\n: keepalive\ndata: {\"content\":\"ok\"}\n",
			content: "ok",
		},
		{
			name:    "stops at done",
			stream:  "data: {\"content\":\"first\"}\ndata: [DONE]\ndata: {\"content\":\" ignored\"}\n",
			content: "first",
		},
		{
			name:      "final carries metadata",
			stream:    "data: {\"content\":\" bye \",\"is_final\":true,\"metadata\":{\"score\":3}}\n",
			content:   "bye",
			final:     true,
			hasFields: true,
		},
		{
			name:    "empty stream",
			stream:  "",
			content: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := readAssistantStream(strings.NewReader(tt.stream))
			if err != nil {
				t.Fatalf("readAssistantStream: %v", err)
			}
			if msg.Content != tt.content || msg.IsFinal != tt.final {
				t.Errorf("msg = %+v", msg)
			}
			if tt.hasFields && msg.Metadata["score"] == nil {
				t.Errorf("metadata = %v", msg.Metadata)
			}
		})
	}
}
