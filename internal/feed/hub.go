// Package feed streams committed conversation transitions to operator
// websocket clients.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
)

const (
	defaultBuffer       = 32
	defaultWriteTimeout = 5 * time.Second
)

// subscriber is one connected client. Transitions are queued on ch and
// written by the client's own goroutine.
type subscriber struct {
	id string
	ch chan []byte
}

// Hub fans transitions out to subscribers. A subscriber whose queue is full
// misses the transition rather than stalling the conversation driver.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	buffer int
	logger *slog.Logger
}

// NewHub creates an empty hub. buffer <= 0 selects the default queue depth.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]*subscriber),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a client and returns its queue plus a cancel func.
// Subscribing twice with the same id replaces the earlier subscription.
func (h *Hub) Subscribe(id string) (<-chan []byte, func()) {
	sub := &subscriber{id: id, ch: make(chan []byte, h.buffer)}

	h.mu.Lock()
	if existing, ok := h.subs[id]; ok {
		close(existing.ch)
	}
	h.subs[id] = sub
	h.mu.Unlock()
	h.logger.Info("Feed subscriber registered", "subscriber_id", id)

	return sub.ch, func() { h.unsubscribe(sub) }
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.subs[sub.id]; ok && current == sub {
		delete(h.subs, sub.id)
		close(sub.ch)
		h.logger.Info("Feed subscriber unregistered", "subscriber_id", sub.id)
	}
}

// Observe implements conversation.Observer.
func (h *Hub) Observe(t domain.Transition) {
	data, err := json.Marshal(t)
	if err != nil {
		h.logger.Error("Failed to encode transition", "error", err, "user_id", t.UserID)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		select {
		case sub.ch <- data:
		default:
			h.logger.Warn("Feed subscriber lagging, transition dropped", "subscriber_id", sub.id, "user_id", t.UserID)
		}
	}
}

// Len reports the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}

func writeTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultWriteTimeout)
}
