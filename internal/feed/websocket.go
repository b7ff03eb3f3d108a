package feed

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Handler upgrades operator connections and streams hub transitions to them.
type Handler struct {
	hub           *Hub
	allowedOrigin string
	logger        *slog.Logger
}

// NewHandler creates a websocket handler for hub. An empty or "*"
// allowedOrigin accepts any origin.
func NewHandler(hub *Hub, allowedOrigin string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hub: hub, allowedOrigin: allowedOrigin, logger: logger}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	id := uuid.NewString()
	updates, cancelSub := h.hub.Subscribe(id)
	defer cancelSub()

	// The feed is write-only; CloseRead handles control frames and cancels
	// ctx when the client goes away.
	ctx := ws.CloseRead(r.Context())
	h.outputLoop(ctx, ws, updates, id)
}

func (h *Handler) outputLoop(ctx context.Context, ws *websocket.Conn, updates <-chan []byte, id string) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("Feed client disconnected", "subscriber_id", id)
			return
		case data, ok := <-updates:
			if !ok {
				return
			}
			wctx, cancel := writeTimeout(ctx)
			err := ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					h.logger.Warn("Feed write error", "error", err, "subscriber_id", id)
				}
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
