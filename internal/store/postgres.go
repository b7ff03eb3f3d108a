package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store on Postgres through the pgx stdlib driver.
// It lets several service replicas share conversation state.
type PostgresStore struct {
	db   *sql.DB
	opts Options
}

// NewPostgres opens dsn, verifies connectivity and creates the schema if needed.
func NewPostgres(ctx context.Context, dsn string, opts Options) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db, opts: opts}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS conversation_sessions (
		user_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		data JSONB NOT NULL,
		last_activity_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_sessions_activity ON conversation_sessions(last_activity_at);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetOrCreate returns the stored record or a fresh unsaved one.
func (s *PostgresStore) GetOrCreate(ctx context.Context, userID string) (*domain.SessionRecord, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil || rec != nil {
		return rec, err
	}
	return domain.NewSessionRecord(userID, s.opts.now()), nil
}

// Get returns the record for userID, or nil if absent or expired.
func (s *PostgresStore) Get(ctx context.Context, userID string) (*domain.SessionRecord, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM conversation_sessions WHERE user_id = $1`, userID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", userID, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	if rec.Expired(s.opts.now(), s.opts.TTL) {
		return nil, nil
	}
	return rec, nil
}

// Save creates or replaces the record.
func (s *PostgresStore) Save(ctx context.Context, rec *domain.SessionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO conversation_sessions (user_id, state, data, last_activity_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (user_id) DO UPDATE SET
		state = EXCLUDED.state,
		data = EXCLUDED.data,
		last_activity_at = EXCLUDED.last_activity_at,
		updated_at = EXCLUDED.updated_at`

	if _, err := s.db.ExecContext(ctx, query,
		rec.UserID, rec.State.String(), data,
		rec.LastActivityAt.UTC(), rec.CreatedAt.UTC(), s.opts.now().UTC(),
	); err != nil {
		return fmt.Errorf("upsert session %s: %w", rec.UserID, err)
	}
	return nil
}

// Delete removes the record for userID.
func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete session %s: %w", userID, err)
	}
	return nil
}

// DeleteExpired removes records idle for longer than the TTL.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	if s.opts.TTL <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_sessions WHERE last_activity_at < $1`, s.opts.cutoff().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	return nil
}
