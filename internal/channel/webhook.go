package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"slackbridge/internal/domain"
)

// Slack request headers.
const (
	HeaderSignature = "X-Slack-Signature"
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderRetryNum  = "X-Slack-Retry-Num"
)

const webhookMaxBodySize = 1 << 20 // 1MB

// WebhookConfig configures the Slack Events API HTTP transport.
type WebhookConfig struct {
	Addr        string // listen address (default: :8080)
	Path        string // events URL path (default: /slack/events)
	MetricsPath string // empty disables the metrics route
	Handler     domain.RequestHandler
	Metrics     http.Handler
	Logger      *slog.Logger
}

// Webhook serves the Slack Events API endpoint over plain HTTP.
type Webhook struct {
	addr        string
	path        string
	metricsPath string
	handler     domain.RequestHandler
	metrics     http.Handler
	logger      *slog.Logger
	server      *http.Server
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Path == "" {
		cfg.Path = "/slack/events"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Webhook{
		addr:        cfg.Addr,
		path:        cfg.Path,
		metricsPath: cfg.MetricsPath,
		handler:     cfg.Handler,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

func (w *Webhook) Name() string { return "webhook" }

// Routes returns the HTTP handler with the events, health and metrics routes.
func (w *Webhook) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handleEvent)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(rw, "ok")
	})
	if w.metricsPath != "" && w.metrics != nil {
		mux.Handle(w.metricsPath, w.metrics)
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (w *Webhook) Start(ctx context.Context) error {
	w.server = &http.Server{
		Addr:              w.addr,
		Handler:           w.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second, // agent calls can be slow
		IdleTimeout:       60 * time.Second,
	}

	w.logger.Info("webhook server starting", "addr", w.addr, "path", w.path)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (w *Webhook) handleEvent(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.Header().Set("Allow", http.MethodPost)
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, webhookMaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(rw, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}

	if retry := r.Header.Get(HeaderRetryNum); retry != "" {
		w.logger.Info("slack redelivery", "retry_num", retry, "reason", r.Header.Get("X-Slack-Retry-Reason"))
	}

	// A caller that hangs up must not abort an agent call or the reply post.
	resp := w.handler.Handle(context.WithoutCancel(r.Context()), domain.Request{
		Body:      body,
		Signature: r.Header.Get(HeaderSignature),
		Timestamp: r.Header.Get(HeaderTimestamp),
	})
	writeResponse(rw, resp)
}

func writeResponse(rw http.ResponseWriter, resp domain.Response) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(resp.StatusCode)
	rw.Write(resp.Body)
}
