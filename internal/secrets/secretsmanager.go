// Package secrets resolves the Slack bot token and signing secret.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"slackbridge/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Keys of the JSON secret blob.
const (
	FieldBotToken      = "slack_token"
	FieldSigningSecret = "slack_signing_secret"
)

var (
	ErrEmptySecret  = errors.New("secret has no string value")
	ErrMissingField = errors.New("secret is missing a required field")
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager reads credentials from an AWS Secrets Manager JSON secret.
type SecretsManager struct {
	client   secretsAPI
	secretID string
}

func NewSecretsManager(client *secretsmanager.Client, secretID string) (*SecretsManager, error) {
	return newSecretsManager(client, secretID)
}

func newSecretsManager(client secretsAPI, secretID string) (*SecretsManager, error) {
	if strings.TrimSpace(secretID) == "" {
		return nil, fmt.Errorf("missing secret id")
	}
	return &SecretsManager{client: client, secretID: secretID}, nil
}

type secretBlob struct {
	BotToken      string `json:"slack_token"`
	SigningSecret string `json:"slack_signing_secret"`
}

func (s *SecretsManager) Fetch(ctx context.Context) (domain.Credentials, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("get secret value: %w", err)
	}
	raw := aws.ToString(out.SecretString)
	if raw == "" {
		return domain.Credentials{}, ErrEmptySecret
	}

	var blob secretBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return domain.Credentials{}, fmt.Errorf("parse secret: %w", err)
	}
	return toCredentials(blob.BotToken, blob.SigningSecret)
}

func toCredentials(token, signing string) (domain.Credentials, error) {
	if token == "" {
		return domain.Credentials{}, fmt.Errorf("%w: %s", ErrMissingField, FieldBotToken)
	}
	if signing == "" {
		return domain.Credentials{}, fmt.Errorf("%w: %s", ErrMissingField, FieldSigningSecret)
	}
	return domain.Credentials{BotToken: token, SigningSecret: signing}, nil
}
