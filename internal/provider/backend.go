package provider

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"slackbridge/internal/domain"
	"slackbridge/internal/metrics"
)

// DefaultFallbackMessage is relayed when the agent cannot be reached.
const DefaultFallbackMessage = "I'm having trouble processing your request right now. Please try again in a moment."

// ErrEmptyCompletion is returned by a backend that answered with no text.
var ErrEmptyCompletion = errors.New("agent returned an empty completion")

// Backend is a remote conversational agent.
type Backend interface {
	Name() string
	Invoke(ctx context.Context, ex domain.AgentExchange) (string, error)
}

// Client implements domain.AgentClient over a Backend. It never returns an
// error or empty text: any backend failure becomes the fallback message.
type Client struct {
	backend  Backend
	fallback string
	logger   *slog.Logger
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Backend         Backend
	FallbackMessage string
	Logger          *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if strings.TrimSpace(cfg.FallbackMessage) == "" {
		cfg.FallbackMessage = DefaultFallbackMessage
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{backend: cfg.Backend, fallback: cfg.FallbackMessage, logger: cfg.Logger}
}

// Invoke sends the exchange to the backend and returns its reply.
func (c *Client) Invoke(ctx context.Context, ex domain.AgentExchange) string {
	start := time.Now()
	reply, err := c.backend.Invoke(ctx, ex)
	elapsed := time.Since(start)
	metrics.AgentLatency.Observe(elapsed.Seconds())

	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyCompletion
	}
	if err != nil {
		metrics.AgentFallbacks.Inc()
		c.logger.Error("agent invocation failed, replying with fallback",
			"backend", c.backend.Name(),
			"thread", ex.ThreadID,
			"session", ex.SessionID,
			"latency_ms", elapsed.Milliseconds(),
			"err", err,
		)
		return c.fallback
	}

	c.logger.Info("agent replied",
		"backend", c.backend.Name(),
		"thread", ex.ThreadID,
		"session", ex.SessionID,
		"latency_ms", elapsed.Milliseconds(),
		"content_len", len(reply),
	)
	return reply
}

// FallbackMessage returns the text used when the backend fails.
func (c *Client) FallbackMessage() string { return c.fallback }
