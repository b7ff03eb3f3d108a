package store

import (
	"context"
	"log/slog"
	"time"
)

// ExpiryCallback is called after each sweep that removed at least one record.
type ExpiryCallback func(removed int64)

// StartExpiryWorker runs a background goroutine that periodically removes
// records idle for longer than the store's TTL. It stops when ctx is done.
func StartExpiryWorker(ctx context.Context, s Store, interval time.Duration, logger *slog.Logger, onExpired ExpiryCallback) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		logger.Info("Expiry worker started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				sweepExpired(ctx, s, logger, onExpired)
			case <-ctx.Done():
				logger.Info("Expiry worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpired(ctx context.Context, s Store, logger *slog.Logger, onExpired ExpiryCallback) {
	removed, err := s.DeleteExpired(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("Expiry sweep interrupted", "error", err)
			return
		}
		logger.Error("Expiry worker failed to delete expired sessions", "error", err)
		return
	}
	if removed == 0 {
		return
	}
	logger.Info("Expiry worker removed idle sessions", "count", removed)
	if onExpired != nil {
		onExpired(removed)
	}
}
