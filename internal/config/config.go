// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable with STATE_STORE.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	LogLevel        string
	WhatsAppNumber  string
	WebhookToken    string
	AllowedOrigin   string
	BackendURL      string
	ResultsBaseURL  string
	StateStore      string
	DBPath          string
	DatabaseURL     string
	SessionTimeout  time.Duration
	SweepInterval   time.Duration
	OutboundTimeout time.Duration
	QuestionTotal   int
	GRPCHealthAddr  string
	OTLPEndpoint    string
	DeepLinkText    string
	Whapi           WhapiConfig
}

// WhapiConfig configures the outbound WhatsApp gateway.
type WhapiConfig struct {
	APIURL     string
	Token      string
	ChannelID  string
	MaxOptions int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8765"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		WhatsAppNumber:  getEnv("WHATSAPP_NUMBER", ""),
		WebhookToken:    getEnv("WEBHOOK_TOKEN", ""),
		AllowedOrigin:   getEnv("FEED_ALLOWED_ORIGIN", "*"),
		BackendURL:      getEnv("BACKEND_API_URL", "http://localhost:8000"),
		ResultsBaseURL:  getEnv("RESULTS_BASE_URL", "https://brainytots.com/pages/assessment-results"),
		StateStore:      strings.ToLower(getEnv("STATE_STORE", StoreSQLite)),
		DBPath:          getEnv("DB_PATH", "./data/sessions.db"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		SessionTimeout:  getEnvDuration("SESSION_TIMEOUT", 24*time.Hour),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		OutboundTimeout: getEnvDuration("OUTBOUND_TIMEOUT", 5*time.Second),
		QuestionTotal:   getEnvInt("QUESTION_TOTAL_ESTIMATE", 12),
		GRPCHealthAddr:  getEnv("GRPC_HEALTH_ADDR", ""),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		DeepLinkText:    getEnv("DEEP_LINK_TEXT", "Start"),
		Whapi: WhapiConfig{
			APIURL:     getEnv("WHAPI_API_URL", "https://gate.whapi.cloud"),
			Token:      getEnv("WHAPI_API_TOKEN", ""),
			ChannelID:  getEnv("WHAPI_CHANNEL_ID", ""),
			MaxOptions: getEnvInt("WHAPI_MAX_OPTIONS", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT cannot be empty"))
	}
	if c.Whapi.Token == "" {
		errs = append(errs, errors.New("WHAPI_API_TOKEN is required"))
	}
	if c.WhatsAppNumber == "" {
		errs = append(errs, errors.New("WHATSAPP_NUMBER is required"))
	}
	if c.BackendURL == "" {
		errs = append(errs, errors.New("BACKEND_API_URL cannot be empty"))
	}
	switch c.StateStore {
	case StoreMemory:
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH cannot be empty with the sqlite store"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required with the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STATE_STORE %q must be memory, sqlite or postgres", c.StateStore))
	}
	if c.SessionTimeout < 0 {
		errs = append(errs, errors.New("SESSION_TIMEOUT must be >= 0"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be > 0"))
	}
	if c.OutboundTimeout <= 0 {
		errs = append(errs, errors.New("OUTBOUND_TIMEOUT must be > 0"))
	}
	if c.QuestionTotal <= 0 {
		errs = append(errs, errors.New("QUESTION_TOTAL_ESTIMATE must be > 0"))
	}
	if c.Whapi.MaxOptions < 2 {
		errs = append(errs, errors.New("WHAPI_MAX_OPTIONS must be >= 2"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
