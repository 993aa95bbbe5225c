package domain

import (
	"context"
	"time"
)

// SessionKey identifies a thread. Slack scopes thread timestamps per channel,
// so the channel is part of the key.
type SessionKey struct {
	ThreadID  string
	ChannelID string
}

// SessionRecord maps a thread to an agent session. AgentSessionID never
// changes once written; only LastActivity and ExpiresAt move.
type SessionRecord struct {
	Key            SessionKey
	AgentSessionID string
	UserID         string
	CreatedAt      time.Time
	LastActivity   time.Time
	ExpiresAt      time.Time
}

// Expired reports whether the record's expiry has passed at now.
func (r SessionRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// SessionStore is the durable key-value store behind session records.
type SessionStore interface {
	// GetSession returns nil, nil when no record exists for key.
	GetSession(ctx context.Context, key SessionKey) (*SessionRecord, error)
	// PutSession writes rec, replacing any existing record (last writer wins).
	PutSession(ctx context.Context, rec SessionRecord) error
	// TouchSession moves the record's last activity and expiry.
	TouchSession(ctx context.Context, key SessionKey, lastActivity, expiresAt time.Time) error
}

// SessionResolver returns the agent session for a thread. It never fails;
// store outages degrade to a fallback identifier.
type SessionResolver interface {
	ResolveSession(ctx context.Context, threadID, channelID, userID string) string
}
