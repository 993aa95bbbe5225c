package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"slackbridge/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.SessionStore on a local SQLite database.
// SQLite has no native TTL, so expired rows are removed by RunJanitor.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS sessions (
		thread_id        TEXT NOT NULL,
		channel_id       TEXT NOT NULL,
		agent_session_id TEXT NOT NULL,
		user_id          TEXT,
		created_at       INTEGER NOT NULL,
		last_activity    INTEGER NOT NULL,
		expires_at       INTEGER NOT NULL,
		PRIMARY KEY (thread_id, channel_id)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(expires_at);
	`)
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, key domain.SessionKey) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	var userID sql.NullString
	var created, activity, expires int64
	err := s.db.QueryRowContext(ctx,
		`SELECT agent_session_id, user_id, created_at, last_activity, expires_at
		 FROM sessions WHERE thread_id = ? AND channel_id = ?`,
		key.ThreadID, key.ChannelID,
	).Scan(&rec.AgentSessionID, &userID, &created, &activity, &expires)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.Key = key
	rec.UserID = userID.String
	rec.CreatedAt = time.Unix(created, 0)
	rec.LastActivity = time.Unix(activity, 0)
	rec.ExpiresAt = time.Unix(expires, 0)
	return &rec, nil
}

func (s *SQLiteStore) PutSession(ctx context.Context, rec domain.SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (thread_id, channel_id, agent_session_id, user_id, created_at, last_activity, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(thread_id, channel_id) DO UPDATE SET
			agent_session_id = excluded.agent_session_id,
			user_id          = excluded.user_id,
			created_at       = excluded.created_at,
			last_activity    = excluded.last_activity,
			expires_at       = excluded.expires_at`,
		rec.Key.ThreadID, rec.Key.ChannelID, rec.AgentSessionID, rec.UserID,
		rec.CreatedAt.Unix(), rec.LastActivity.Unix(), rec.ExpiresAt.Unix(),
	)
	return err
}

func (s *SQLiteStore) TouchSession(ctx context.Context, key domain.SessionKey, lastActivity, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ?, expires_at = ? WHERE thread_id = ? AND channel_id = ?`,
		lastActivity.Unix(), expiresAt.Unix(), key.ThreadID, key.ChannelID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// PurgeExpired deletes records whose expiry is at or before now.
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RunJanitor purges expired records every interval until ctx is done.
func (s *SQLiteStore) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx, time.Now())
			if err != nil {
				s.logger.Warn("session purge failed", "err", err)
			} else if n > 0 {
				s.logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
