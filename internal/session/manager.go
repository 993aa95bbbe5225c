package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"slackbridge/internal/domain"
	"slackbridge/internal/metrics"
)

// DefaultTTL is how long a thread keeps its agent session without activity.
const DefaultTTL = 24 * time.Hour

// FallbackPrefix marks session ids minted without the store.
const FallbackPrefix = "fallback-"

// Manager implements get-or-create over a domain.SessionStore with sliding expiry.
type Manager struct {
	store  domain.SessionStore
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Store  domain.SessionStore
	TTL    time.Duration
	Now    func() time.Time // defaults to time.Now
	Logger *slog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{store: cfg.Store, ttl: cfg.TTL, now: cfg.Now, logger: cfg.Logger}
}

// ResolveSession returns the agent session id for the thread, creating a
// record on first use. Store failures never propagate: the caller gets a
// fallback id and the conversation continues without stored continuity.
//
// Two first messages racing on the same thread may both create a record;
// the last write wins and later messages converge on it.
func (m *Manager) ResolveSession(ctx context.Context, threadID, channelID, userID string) string {
	key := domain.SessionKey{ThreadID: threadID, ChannelID: channelID}
	now := m.now()
	expires := now.Add(m.ttl)

	rec, err := m.store.GetSession(ctx, key)
	if err != nil {
		return m.fallback(key, fmt.Errorf("get session: %w", err))
	}

	if rec != nil && !rec.Expired(now) {
		if rec.ExpiresAt.After(expires) {
			expires = rec.ExpiresAt
		}
		err := m.store.TouchSession(ctx, key, now, expires)
		if errors.Is(err, ErrSessionNotFound) {
			// Expired between read and refresh: write it back under the same id.
			restored := *rec
			restored.LastActivity = now
			restored.ExpiresAt = expires
			err = m.store.PutSession(ctx, restored)
		}
		if err != nil {
			// The stored id is still valid; only the expiry refresh was lost.
			m.logger.Warn("session expiry refresh failed",
				"thread", threadID, "channel", channelID, "err", err)
		}
		return rec.AgentSessionID
	}

	newRec := domain.SessionRecord{
		Key:            key,
		AgentSessionID: NewSessionID(threadID, now),
		UserID:         userID,
		CreatedAt:      now,
		LastActivity:   now,
		ExpiresAt:      expires,
	}
	if err := m.store.PutSession(ctx, newRec); err != nil {
		return m.fallback(key, fmt.Errorf("put session: %w", err))
	}

	m.logger.Info("created agent session",
		"thread", threadID,
		"channel", channelID,
		"session", newRec.AgentSessionID,
	)
	return newRec.AgentSessionID
}

func (m *Manager) fallback(key domain.SessionKey, err error) string {
	id := FallbackSessionID(key.ThreadID)
	metrics.SessionFallbacks.Inc()
	m.logger.Error("session store unavailable, using fallback session",
		"thread", key.ThreadID,
		"channel", key.ChannelID,
		"session", id,
		"err", err,
	)
	return id
}

// NewSessionID mints the id for a new thread record. Thread ids are unique
// per channel, so the id is unique across concurrent creations for
// different threads.
func NewSessionID(threadID string, now time.Time) string {
	return fmt.Sprintf("slack-%s-%d", threadID, now.Unix())
}

// FallbackSessionID is the deterministic, store-free session id for a thread.
func FallbackSessionID(threadID string) string {
	return FallbackPrefix + threadID
}
