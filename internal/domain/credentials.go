package domain

import (
	"context"
	"time"
)

// Credentials holds the outbound bot token and the inbound signing secret.
type Credentials struct {
	BotToken      string
	SigningSecret string
}

// SecretSource yields the Slack credentials for a request.
type SecretSource interface {
	Fetch(ctx context.Context) (Credentials, error)
}

// Verifier authenticates a raw webhook request.
type Verifier interface {
	Verify(body []byte, signature, timestamp, secret string, now time.Time) bool
}
