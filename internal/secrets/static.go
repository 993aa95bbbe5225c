package secrets

import (
	"context"

	"slackbridge/internal/domain"
)

// Static serves credentials supplied directly through configuration.
type Static struct {
	creds domain.Credentials
	err   error
}

func NewStatic(botToken, signingSecret string) *Static {
	creds, err := toCredentials(botToken, signingSecret)
	return &Static{creds: creds, err: err}
}

func (s *Static) Fetch(ctx context.Context) (domain.Credentials, error) {
	return s.creds, s.err
}
