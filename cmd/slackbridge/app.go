package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"slackbridge/internal/bridge"
	"slackbridge/internal/channel"
	"slackbridge/internal/config"
	"slackbridge/internal/domain"
	"slackbridge/internal/provider"
	"slackbridge/internal/secrets"
	"slackbridge/internal/security"
	"slackbridge/internal/session"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const janitorInterval = 10 * time.Minute

// app holds the wired orchestrator and whatever must be released on exit.
type app struct {
	Orchestrator *bridge.Orchestrator
	Secrets      domain.SecretSource
	Store        domain.SessionStore
	closers      []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func needsAWS(cfg *config.Config) bool {
	if cfg.Slack.SecretID != "" || cfg.Session.Backend == "dynamodb" {
		return true
	}
	for _, b := range cfg.AgentBackends() {
		if b == "bedrock" {
			return true
		}
	}
	return false
}

func loadAWS(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
	}
	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	awsCfg, err := awsconfig.LoadDefaultConfig(loadCtx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// buildApp constructs every collaborator from cfg. Shared clients are
// created once and reused across requests.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	var awsCfg aws.Config
	if needsAWS(cfg) {
		var err error
		if awsCfg, err = loadAWS(ctx, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Slack.SecretID != "" {
		sm, err := secrets.NewSecretsManager(secretsmanager.NewFromConfig(awsCfg), cfg.Slack.SecretID)
		if err != nil {
			return nil, fmt.Errorf("secrets: %w", err)
		}
		a.Secrets = sm
	} else {
		a.Secrets = secrets.NewStatic(cfg.Slack.BotToken, cfg.Slack.SigningSecret)
	}
	if ttl := cfg.SecretCacheTTL(); ttl > 0 {
		a.Secrets = secrets.NewCached(a.Secrets, ttl)
	}

	switch cfg.Session.Backend {
	case "dynamodb":
		store, err := session.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Session.TableName, logger)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		a.Store = store
	case "sqlite":
		store, err := session.NewSQLiteStore(cfg.Session.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
		janitorCtx, cancel := context.WithCancel(ctx)
		go store.RunJanitor(janitorCtx, janitorInterval)
		a.closers = append(a.closers, func() error { cancel(); return nil })
	default:
		return nil, fmt.Errorf("unknown session backend: %s", cfg.Session.Backend)
	}

	agent, err := provider.NewFactory(cfg, provider.Deps{
		AWS:    awsCfg,
		Logger: logger,
	}).Client()
	if err != nil {
		a.Close()
		return nil, err
	}

	orch, err := bridge.New(bridge.Config{
		Secrets:  a.Secrets,
		Verifier: security.NewSignatureVerifier(security.VerifierConfig{ReplayWindow: cfg.ReplayWindow(), Logger: logger}),
		Sessions: session.NewManager(session.ManagerConfig{
			Store:  a.Store,
			TTL:    cfg.SessionTTL(),
			Logger: logger,
		}),
		Agent: agent,
		Publisher: channel.NewSlackPublisher(channel.SlackPublisherConfig{
			APIURL:     cfg.Slack.APIURL,
			HTTPClient: provider.SharedHTTPClient(30 * time.Second),
			Logger:     logger,
		}),
		BotMention:     cfg.Slack.BotMention,
		BotUserID:      cfg.BotUserID(),
		RequireMention: cfg.Slack.RequireMention,
		Logger:         logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Orchestrator = orch

	logger.Info("slackbridge ready",
		"agent", cfg.Agent.Backend,
		"sessions", cfg.Session.Backend,
		"require_mention", cfg.Slack.RequireMention,
	)
	return a, nil
}
