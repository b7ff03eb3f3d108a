//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
	"github.com/brainytots/wa-connect/internal/health"
	"github.com/brainytots/wa-connect/internal/inbound"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProcessor struct {
	mu      sync.Mutex
	batches [][]domain.InboundEvent
	err     error
	done    chan struct{}
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{done: make(chan struct{}, 8)}
}

func (f *fakeProcessor) ProcessBatch(_ context.Context, events []domain.InboundEvent) error {
	f.mu.Lock()
	f.batches = append(f.batches, events)
	f.mu.Unlock()
	f.done <- struct{}{}
	return f.err
}

func (f *fakeProcessor) processed() [][]domain.InboundEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]domain.InboundEvent(nil), f.batches...)
}

type fakeChecker struct {
	report health.Report
}

func (f fakeChecker) Check(context.Context) health.Report { return f.report }

func decodeBody(t *testing.T, body io.Reader) map[string]string {
	t.Helper()
	var got map[string]string
	if err := json.NewDecoder(body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return got
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := decodeBody(t, resp.Body); got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

const textDelivery = `{
  "messages": [{
    "id": "wamid.1",
    "from_me": false,
    "type": "text",
    "chat_id": "919800000001@s.whatsapp.net",
    "timestamp": 1760434200,
    "text": {"body": "Start"}
  }],
  "event": {"type": "messages", "event": "post"},
  "channel_id": "CH-1"
}`

func TestWebhookAcknowledgesAndProcesses(t *testing.T) {
	proc := newFakeProcessor()
	h := NewWebhookHandler(inbound.NewNormalizer(discardLogger()), proc, time.Second, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textDelivery))
	w := httptest.NewRecorder()
	h.Receive(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody(t, w.Body); got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	batches := proc.processed()
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("batches = %v", batches)
	}
	if ev := batches[0][0]; ev.UserID != "919800000001" || ev.Text != "Start" || ev.MessageID != "wamid.1" {
		t.Errorf("event = %+v", ev)
	}
}

func TestWebhookMalformedStillOK(t *testing.T) {
	proc := newFakeProcessor()
	h := NewWebhookHandler(inbound.NewNormalizer(discardLogger()), proc, time.Second, discardLogger())

	for _, body := range []string{"", "not json", `"a string"`} {
		w := httptest.NewRecorder()
		h.Receive(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
		if w.Code != http.StatusOK {
			t.Errorf("body %q: status = %d", body, w.Code)
		}
		if got := decodeBody(t, w.Body); got["status"] != "error" {
			t.Errorf("body %q: response = %v", body, got)
		}
	}
	if n := len(proc.processed()); n != 0 {
		t.Fatalf("processed %d batches for malformed input", n)
	}
}

func TestWebhookStatusOnlyDeliverySkipsProcessing(t *testing.T) {
	proc := newFakeProcessor()
	h := NewWebhookHandler(inbound.NewNormalizer(discardLogger()), proc, time.Second, discardLogger())

	body := `{"statuses":[{"id":"wamid.1","status":"read"}],"event":{"type":"statuses","event":"post"}}`
	w := httptest.NewRecorder()
	h.Receive(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n := len(proc.processed()); n != 0 {
		t.Fatalf("processed %d batches", n)
	}
}

func TestWebhookProcessingErrorIsNotReported(t *testing.T) {
	proc := newFakeProcessor()
	proc.err = errors.New("backend unavailable")
	h := NewWebhookHandler(inbound.NewNormalizer(discardLogger()), proc, time.Second, discardLogger())

	w := httptest.NewRecorder()
	h.Receive(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textDelivery)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	<-proc.done
}

type blockingProcessor struct {
	started  chan struct{}
	finished chan error
}

func (b *blockingProcessor) ProcessBatch(ctx context.Context, _ []domain.InboundEvent) error {
	close(b.started)
	<-ctx.Done()
	b.finished <- ctx.Err()
	return ctx.Err()
}

func TestWebhookShutdownCancelsInFlightWork(t *testing.T) {
	proc := &blockingProcessor{started: make(chan struct{}), finished: make(chan error, 1)}
	h := NewWebhookHandler(inbound.NewNormalizer(discardLogger()), proc, time.Minute, discardLogger())

	w := httptest.NewRecorder()
	h.Receive(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textDelivery)))
	<-proc.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown = %v, want deadline exceeded", err)
	}
	select {
	case err := <-proc.finished:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("processor ctx err = %v, want canceled", err)
		}
	default:
		t.Fatal("Shutdown returned while processing was still running")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		report     health.Report
		wantCode   int
		wantStatus string
		wantBack   string
	}{
		{
			name:       "healthy",
			report:     health.Report{Healthy: true, Components: map[string]bool{"backend": true, "store": true}},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantBack:   "up",
		},
		{
			name:       "backend down",
			report:     health.Report{Healthy: false, Components: map[string]bool{"backend": false, "store": true}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantBack:   "down",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(fakeChecker{report: tt.report}, time.Second)
			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			got := decodeBody(t, w.Body)
			if got["status"] != tt.wantStatus || got["backend"] != tt.wantBack || got["store"] != "up" {
				t.Errorf("body = %v", got)
			}
		})
	}
}

func TestQRCode(t *testing.T) {
	h := NewDeepLinkHandler("+919800000000", "Start")
	w := httptest.NewRecorder()
	h.QRCode(w, httptest.NewRequest(http.MethodGet, "/qr-code", nil))

	got := decodeBody(t, w.Body)
	if got["wa_link"] != "https://wa.me/919800000000?text=Start" {
		t.Errorf("wa_link = %q", got["wa_link"])
	}
	if got["message"] == "" || got["instructions"] == "" {
		t.Errorf("body = %v", got)
	}
}

func TestRouterGuardsWebhook(t *testing.T) {
	proc := newFakeProcessor()
	r := NewRouter(RouterConfig{
		Webhook:      NewWebhookHandler(inbound.NewNormalizer(discardLogger()), proc, time.Second, discardLogger()),
		Health:       NewHealthHandler(fakeChecker{report: health.Report{Healthy: true}}, time.Second),
		DeepLink:     NewDeepLinkHandler("919800000000", "Start"),
		WebhookToken: "s3cret",
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(textDelivery))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated webhook status = %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/webhook?token=s3cret", "application/json", strings.NewReader(textDelivery))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook status = %d", resp.StatusCode)
	}
	<-proc.done

	for _, path := range []string{"/ping", "/health", "/qr-code"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
	}
}
