package channel

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"slackbridge/internal/domain"
)

func testWebhookLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingHandler implements domain.RequestHandler for testing.
type recordingHandler struct {
	resp domain.Response
	reqs []domain.Request
}

func (h *recordingHandler) Handle(ctx context.Context, req domain.Request) domain.Response {
	h.reqs = append(h.reqs, req)
	return h.resp
}

func newTestWebhook(h domain.RequestHandler) *Webhook {
	return NewWebhook(WebhookConfig{
		Path:        "/slack/events",
		MetricsPath: "/metrics",
		Handler:     h,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("slackbridge_uptime_seconds 1\n"))
		}),
		Logger: testWebhookLogger(),
	})
}

func TestWebhook_ForwardsRawRequest(t *testing.T) {
	h := &recordingHandler{resp: domain.Response{StatusCode: http.StatusOK, Body: []byte(`"Message processed"`)}}
	routes := newTestWebhook(h).Routes()

	body := `{"type":"event_callback","event":{"type":"message","text":"hi  <@U1>"}}`
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("X-Slack-Signature", "v0=abc")
	req.Header.Set("X-Slack-Request-Timestamp", "1700000000")
	rr := httptest.NewRecorder()
	routes.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != `"Message processed"` {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if len(h.reqs) != 1 {
		t.Fatalf("expected 1 handled request, got %d", len(h.reqs))
	}
	got := h.reqs[0]
	if string(got.Body) != body {
		t.Fatal("body must be forwarded byte-for-byte")
	}
	if got.Signature != "v0=abc" || got.Timestamp != "1700000000" {
		t.Fatalf("headers not forwarded: %+v", got)
	}
}

func TestWebhook_PassesThroughStatus(t *testing.T) {
	h := &recordingHandler{resp: domain.Response{StatusCode: http.StatusForbidden, Body: []byte(`"Invalid request signature"`)}}
	rr := httptest.NewRecorder()
	newTestWebhook(h).Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader("{}")))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestWebhook_RejectsNonPost(t *testing.T) {
	h := &recordingHandler{}
	rr := httptest.NewRecorder()
	newTestWebhook(h).Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/slack/events", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if len(h.reqs) != 0 {
		t.Fatal("handler must not be called")
	}
}

func TestWebhook_RejectsOversizedBody(t *testing.T) {
	h := &recordingHandler{}
	big := bytes.Repeat([]byte("x"), webhookMaxBodySize+1)
	rr := httptest.NewRecorder()
	newTestWebhook(h).Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(big)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
	if len(h.reqs) != 0 {
		t.Fatal("handler must not be called")
	}
}

func TestWebhook_HealthAndMetrics(t *testing.T) {
	routes := newTestWebhook(&recordingHandler{}).Routes()

	rr := httptest.NewRecorder()
	routes.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	routes.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "slackbridge_uptime_seconds") {
		t.Fatalf("metrics route not mounted: %q", rr.Body.String())
	}
}

func TestWebhook_StartAndShutdown(t *testing.T) {
	w := NewWebhook(WebhookConfig{Addr: "127.0.0.1:0", Handler: &recordingHandler{}, Logger: testWebhookLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}

// blockingHandler holds the request until released and records the
// context state it observed afterwards.
type blockingHandler struct {
	started chan struct{}
	release chan struct{}
	done    chan error
}

func (h *blockingHandler) Handle(ctx context.Context, req domain.Request) domain.Response {
	close(h.started)
	<-h.release
	h.done <- ctx.Err()
	return domain.Response{StatusCode: http.StatusOK, Body: []byte(`"Message processed"`)}
}

func TestWebhook_CallerDisconnectDoesNotCancelPipeline(t *testing.T) {
	h := &blockingHandler{started: make(chan struct{}), release: make(chan struct{}), done: make(chan error, 1)}
	srv := httptest.NewServer(newTestWebhook(h).Routes())
	defer srv.Close()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	_, err := client.Post(srv.URL+"/slack/events", "application/json", strings.NewReader(`{"event":{}}`))
	if err == nil {
		t.Fatal("expected client timeout")
	}

	<-h.started
	// Give the server time to notice the closed connection.
	time.Sleep(200 * time.Millisecond)
	close(h.release)

	select {
	case ctxErr := <-h.done:
		if ctxErr != nil {
			t.Fatalf("pipeline context cancelled after caller disconnected: %v", ctxErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not finish")
	}
}
