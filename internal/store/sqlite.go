package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
	"github.com/brainytots/wa-connect/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	sqliteRetryAttempts = 3
	sqliteRetryDelay    = 50 * time.Millisecond
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

// NewSQLite creates a SQLite-backed store, creating the database file and schema if needed.
func NewSQLite(dbPath string, opts Options) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, opts: opts}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversation_sessions (
		user_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		data TEXT NOT NULL,
		last_activity_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_sessions_activity ON conversation_sessions(last_activity_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetOrCreate returns the stored record or a fresh unsaved one.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, userID string) (*domain.SessionRecord, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil || rec != nil {
		return rec, err
	}
	return domain.NewSessionRecord(userID, s.opts.now()), nil
}

// Get returns the record for userID, or nil if absent or expired.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (*domain.SessionRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM conversation_sessions WHERE user_id = ?`, userID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", userID, err)
	}

	rec, err := decodeRecord([]byte(data))
	if err != nil {
		return nil, err
	}
	if rec.Expired(s.opts.now(), s.opts.TTL) {
		return nil, nil
	}
	return rec, nil
}

// Save creates or replaces the record.
func (s *SQLiteStore) Save(ctx context.Context, rec *domain.SessionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO conversation_sessions (user_id, state, data, last_activity_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		state = excluded.state,
		data = excluded.data,
		last_activity_at = excluded.last_activity_at,
		updated_at = excluded.updated_at`

	return shared.RetryOnSQLiteConflict(ctx, "save_session", sqliteRetryAttempts, sqliteRetryDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.UserID, rec.State.String(), string(data),
			rec.LastActivityAt.UnixNano(), rec.CreatedAt.UnixNano(), s.opts.now().UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("upsert session %s: %w", rec.UserID, err)
		}
		return nil
	})
}

// Delete removes the record for userID.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	return shared.RetryOnSQLiteConflict(ctx, "delete_session", sqliteRetryAttempts, sqliteRetryDelay, func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("delete session %s: %w", userID, err)
		}
		return nil
	})
}

// DeleteExpired removes records idle for longer than the TTL.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int64, error) {
	if s.opts.TTL <= 0 {
		return 0, nil
	}
	var removed int64
	err := shared.RetryOnSQLiteConflict(ctx, "delete_expired", sqliteRetryAttempts, sqliteRetryDelay, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM conversation_sessions WHERE last_activity_at < ?`, s.opts.cutoff().UnixNano())
		if err != nil {
			return fmt.Errorf("delete expired sessions: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
