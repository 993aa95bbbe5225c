package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"slackbridge/internal/domain"
)

// HTTP calls a generic JSON agent endpoint:
//
//	POST <endpoint>  {"sessionId": "...", "inputText": "..."}
//	200              {"outputText": "..."}
type HTTP struct {
	endpoint string
	apiKey   string
	client   *http.Client
	retry    retryPolicy
	logger   *slog.Logger
}

type HTTPConfig struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int           // transient 5xx/429/network failures; 0 disables
	RetryDelay time.Duration // base backoff, default 1s
	Client     *http.Client  // overrides Timeout when set
	Logger     *slog.Logger
}

func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("missing agent endpoint")
	}
	if cfg.Client == nil {
		cfg.Client = SharedHTTPClient(cfg.Timeout)
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTTP{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   cfg.Client,
		retry:    retryPolicy{maxRetries: cfg.MaxRetries, baseDelay: cfg.RetryDelay},
		logger:   cfg.Logger,
	}, nil
}

func (h *HTTP) Name() string { return "http" }

type agentRequest struct {
	SessionID string `json:"sessionId"`
	InputText string `json:"inputText"`
}

type agentResponse struct {
	OutputText string `json:"outputText"`
	Error      string `json:"error,omitempty"`
}

func (h *HTTP) Invoke(ctx context.Context, ex domain.AgentExchange) (string, error) {
	body, err := json.Marshal(agentRequest{SessionID: ex.SessionID, InputText: ex.Text})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	resp, err := doWithRetry(ctx, h.client, h.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if h.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+h.apiKey)
		}
		return req, nil
	}, h.logger)
	if err != nil {
		return "", fmt.Errorf("agent request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("agent %d: %s", resp.StatusCode, string(respBody))
	}

	var out agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("agent error: %s", out.Error)
	}
	if out.OutputText == "" {
		return "", ErrEmptyCompletion
	}
	return out.OutputText, nil
}
