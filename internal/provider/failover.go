package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"slackbridge/internal/domain"
)

// Failover tries multiple backends in order, falling back to the next one
// when the current fails.
type Failover struct {
	backends []Backend
	logger   *slog.Logger
}

// NewFailover creates a failover chain from the given backends.
// At least one backend is required.
func NewFailover(backends []Backend, logger *slog.Logger) *Failover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Failover{backends: backends, logger: logger}
}

func (f *Failover) Name() string {
	names := make([]string, len(f.backends))
	for i, b := range f.backends {
		names[i] = b.Name()
	}
	return "failover(" + strings.Join(names, "→") + ")"
}

// Invoke tries each backend in order and returns the first non-empty reply.
func (f *Failover) Invoke(ctx context.Context, ex domain.AgentExchange) (string, error) {
	if len(f.backends) == 0 {
		return "", fmt.Errorf("failover chain is empty")
	}
	var lastErr error
	for i, b := range f.backends {
		reply, err := b.Invoke(ctx, ex)
		if err == nil && strings.TrimSpace(reply) == "" {
			err = ErrEmptyCompletion
		}
		if err == nil {
			if i > 0 {
				f.logger.Info("failover: used fallback backend",
					"backend", b.Name(),
					"attempt", i+1,
				)
			}
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		f.logger.Warn("failover: backend failed, trying next",
			"backend", b.Name(),
			"attempt", i+1,
			"error", err,
		)
	}
	return "", fmt.Errorf("all backends in failover chain failed: %w", lastErr)
}
