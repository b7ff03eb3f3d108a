package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	maxWebhookBody        = 1 << 20
	defaultProcessTimeout = 2 * time.Minute
)

// Normalizer decodes webhook bodies into events.
type Normalizer interface {
	Normalize(raw []byte) ([]domain.InboundEvent, error)
}

// Processor applies a batch of events to conversations.
type Processor interface {
	ProcessBatch(ctx context.Context, events []domain.InboundEvent) error
}

// WebhookHandler accepts Whapi deliveries. Every delivery is acknowledged with
// 200 and processed on a background goroutine so the gateway never retries.
type WebhookHandler struct {
	normalizer     Normalizer
	processor      Processor
	processTimeout time.Duration
	logger         *slog.Logger
	wg             sync.WaitGroup
	// base is canceled by Shutdown to abort deliveries still running.
	base   context.Context
	cancel context.CancelFunc
}

// NewWebhookHandler creates a webhook handler. processTimeout bounds the
// background work for one delivery; <= 0 uses a default.
func NewWebhookHandler(n Normalizer, p Processor, processTimeout time.Duration, logger *slog.Logger) *WebhookHandler {
	if processTimeout <= 0 {
		processTimeout = defaultProcessTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &WebhookHandler{
		normalizer:     n,
		processor:      p,
		processTimeout: processTimeout,
		logger:         logger,
		base:           base,
		cancel:         cancel,
	}
}

// RegisterRoutes mounts the webhook under r.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.Receive)
}

// Receive handles POST /webhook.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With("request_id", chiMiddleware.GetReqID(r.Context()))

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Error("Failed to read webhook body", "error", err)
		JSON(w, http.StatusOK, map[string]string{"status": "error", "message": "unreadable body"})
		return
	}

	events, err := h.normalizer.Normalize(raw)
	if err != nil {
		log.Error("Invalid webhook payload", "error", err)
		JSON(w, http.StatusOK, map[string]string{"status": "error", "message": "Invalid payload structure"})
		return
	}
	if len(events) == 0 {
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx := context.WithoutCancel(r.Context())
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, h.processTimeout)
		defer cancel()
		stop := context.AfterFunc(h.base, cancel)
		defer stop()
		if err := h.processor.ProcessBatch(ctx, events); err != nil {
			log.Error("Webhook processing failed", "error", err, "events", len(events))
		}
	}()

	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (h *WebhookHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown waits for in-flight deliveries like Wait. If ctx ends first the
// remaining deliveries are canceled and Shutdown returns once they have
// returned, so callers may release shared resources afterwards.
func (h *WebhookHandler) Shutdown(ctx context.Context) error {
	err := h.Wait(ctx)
	if err != nil {
		h.cancel()
		h.wg.Wait()
	}
	return err
}
