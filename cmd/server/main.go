// BrainyTots WhatsApp Connect - conversation server for the developmental
// assessment bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brainytots/wa-connect/internal/api"
	"github.com/brainytots/wa-connect/internal/backend"
	"github.com/brainytots/wa-connect/internal/config"
	"github.com/brainytots/wa-connect/internal/conversation"
	"github.com/brainytots/wa-connect/internal/feed"
	"github.com/brainytots/wa-connect/internal/health"
	"github.com/brainytots/wa-connect/internal/inbound"
	"github.com/brainytots/wa-connect/internal/store"
	"github.com/brainytots/wa-connect/internal/telemetry"
	"github.com/brainytots/wa-connect/internal/templates"
	"github.com/brainytots/wa-connect/internal/whapi"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName         = "wa-connect"
	version             = "1.0.0"
	healthCheckInterval = 30 * time.Second
	shutdownTimeout     = 15 * time.Second
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())

	if err := run(cfg, logger); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server", "port", cfg.Port, "store", cfg.StateStore, "whapi_channel", cfg.Whapi.ChannelID)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: serviceName,
		Version:     version,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("Failed to flush traces", "error", err)
		}
	}()

	sessions, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sessions.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()
	slog.Info("Session store ready", "store", cfg.StateStore, "session_timeout", cfg.SessionTimeout)

	gateway := backend.New(cfg.BackendURL, backend.Options{
		ResultsBaseURL: cfg.ResultsBaseURL,
		Logger:         logger,
	})
	dispatcher := whapi.New(cfg.Whapi.Token, whapi.Options{
		BaseURL:    cfg.Whapi.APIURL,
		MaxOptions: cfg.Whapi.MaxOptions,
		Logger:     logger,
	})

	engine, err := conversation.NewEngine(templates.NewCatalog(), conversation.EngineOptions{
		MaxOptions:    dispatcher.MaxOptions(),
		QuestionTotal: cfg.QuestionTotal,
	})
	if err != nil {
		return fmt.Errorf("initialize conversation engine: %w", err)
	}

	hub := feed.NewHub(0, logger)
	defer hub.Close()

	svc, err := conversation.NewService(conversation.Config{
		Engine:          engine,
		Store:           sessions,
		Gateway:         gateway,
		Dispatcher:      dispatcher,
		Observer:        hub,
		OutboundTimeout: cfg.OutboundTimeout,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("initialize conversation service: %w", err)
	}

	monitor := health.NewMonitor(5*time.Second, logger)
	monitor.Register("store", sessions.Ping)
	monitor.Register("backend", gateway.Health)

	webhook := api.NewWebhookHandler(inbound.NewNormalizer(logger), svc, 0, logger)
	router := api.NewRouter(api.RouterConfig{
		Webhook:        webhook,
		Health:         api.NewHealthHandler(monitor, 5*time.Second),
		DeepLink:       api.NewDeepLinkHandler(cfg.WhatsAppNumber, cfg.DeepLinkText),
		Feed:           feed.NewHandler(hub, cfg.AllowedOrigin, logger),
		WebhookToken:   cfg.WebhookToken,
		AllowedOrigins: []string{cfg.AllowedOrigin},
	})

	// The transition feed is a long-lived websocket, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	store.StartExpiryWorker(ctx, sessions, cfg.SweepInterval, logger, func(removed int64) {
		slog.Info("Expired conversations removed", "count", removed)
	})
	slog.Info("Expiry worker started", "interval", cfg.SweepInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		monitor.Run(gctx, healthCheckInterval)
		return nil
	})

	if cfg.GRPCHealthAddr != "" {
		g.Go(func() error {
			return monitor.Serve(gctx, cfg.GRPCHealthAddr)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		if err := webhook.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Webhook processing canceled at shutdown", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	opts := store.Options{TTL: cfg.SessionTimeout}
	switch cfg.StateStore {
	case config.StoreMemory:
		slog.Warn("Using in-memory session store; conversations are lost on restart")
		return store.NewMemory(opts), nil
	case config.StorePostgres:
		s, err := store.NewPostgres(ctx, cfg.DatabaseURL, opts)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		return s, nil
	default:
		s, err := store.NewSQLite(cfg.DBPath, opts)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		return s, nil
	}
}
