package api

import (
	"context"
	"net/http"
	"time"

	"github.com/brainytots/wa-connect/internal/health"
	"github.com/go-chi/chi/v5"
)

// Checker runs dependency checks.
type Checker interface {
	Check(ctx context.Context) health.Report
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	checker Checker
	timeout time.Duration
}

// NewHealthHandler creates a health handler. timeout bounds one request.
func NewHealthHandler(checker Checker, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{checker: checker, timeout: timeout}
}

// Health returns the health status of the service and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report := h.checker.Check(ctx)
	status := map[string]string{"status": "healthy"}
	statusCode := http.StatusOK
	if !report.Healthy {
		status["status"] = "degraded"
		statusCode = http.StatusServiceUnavailable
	}
	for name, up := range report.Components {
		if up {
			status[name] = "up"
		} else {
			status[name] = "down"
		}
	}

	JSON(w, statusCode, status)
}

// Root reports the service identity.
func (h *HealthHandler) Root(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"service": "BrainyTots WhatsApp Connect",
		"status":  "running",
	})
}

// RegisterHealth registers the health check routes.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
}
