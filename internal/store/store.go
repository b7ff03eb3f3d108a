// Package store provides session-state persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
)

// ErrInvalidRecord is returned when a record cannot be saved.
var ErrInvalidRecord = errors.New("invalid session record")

// Store keeps one conversation record per user id.
//
// Records idle for longer than the configured TTL are treated as absent:
// GetOrCreate returns a fresh StateNew record and Get returns nil.
// Implementations must be safe for concurrent use across different keys;
// serializing access to a single key is the caller's job.
type Store interface {
	// GetOrCreate returns the record for userID, or a new unsaved one.
	GetOrCreate(ctx context.Context, userID string) (*domain.SessionRecord, error)

	// Get returns the record for userID, or nil if absent or expired.
	Get(ctx context.Context, userID string) (*domain.SessionRecord, error)

	// Save creates or replaces the record.
	Save(ctx context.Context, rec *domain.SessionRecord) error

	// Delete removes the record for userID. Deleting a missing record is not an error.
	Delete(ctx context.Context, userID string) error

	// DeleteExpired removes every record idle for longer than the TTL.
	DeleteExpired(ctx context.Context) (int64, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Options configure record expiry for every Store implementation.
type Options struct {
	// TTL is the idle threshold; zero disables expiry.
	TTL time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) cutoff() time.Time {
	return o.now().Add(-o.TTL)
}

func validateRecord(rec *domain.SessionRecord) error {
	switch {
	case rec == nil:
		return errors.Join(ErrInvalidRecord, errors.New("nil record"))
	case rec.UserID == "":
		return errors.Join(ErrInvalidRecord, errors.New("empty user id"))
	case !rec.State.Valid():
		return errors.Join(ErrInvalidRecord, errors.New("undefined state"))
	}
	return nil
}
