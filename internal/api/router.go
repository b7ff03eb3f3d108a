package api

import (
	"net/http"

	"github.com/brainytots/wa-connect/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig lists the handlers mounted by NewRouter.
type RouterConfig struct {
	Webhook  *WebhookHandler
	Health   *HealthHandler
	DeepLink *DeepLinkHandler
	// Feed serves /ws/transitions when non-nil.
	Feed           http.Handler
	WebhookToken   string
	AllowedOrigins []string
}

// NewRouter assembles the service routes. The webhook and the transition
// feed require WebhookToken when it is set.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.AllowedOrigins))
	}

	if cfg.Health != nil {
		cfg.Health.RegisterHealth(r)
	}
	if cfg.DeepLink != nil {
		cfg.DeepLink.RegisterRoutes(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken(cfg.WebhookToken))
		if cfg.Webhook != nil {
			cfg.Webhook.RegisterRoutes(r)
		}
		if cfg.Feed != nil {
			r.Get("/ws/transitions", cfg.Feed.ServeHTTP)
		}
	})

	return r
}
