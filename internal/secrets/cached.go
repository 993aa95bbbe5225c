package secrets

import (
	"context"
	"sync"
	"time"

	"slackbridge/internal/domain"
)

// Cached reuses a successful fetch for ttl. Failures are never cached.
type Cached struct {
	source domain.SecretSource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	creds   domain.Credentials
	fetched time.Time
	valid   bool
}

func NewCached(source domain.SecretSource, ttl time.Duration) *Cached {
	return &Cached{source: source, ttl: ttl, now: time.Now}
}

func (c *Cached) Fetch(ctx context.Context) (domain.Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.valid && now.Sub(c.fetched) < c.ttl {
		return c.creds, nil
	}
	creds, err := c.source.Fetch(ctx)
	if err != nil {
		c.valid = false
		return domain.Credentials{}, err
	}
	c.creds, c.fetched, c.valid = creds, now, true
	return creds, nil
}
