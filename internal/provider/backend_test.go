package provider

import (
	"context"
	"errors"
	"testing"

	"slackbridge/internal/domain"
	"slackbridge/internal/metrics"
)

func TestClient_ReturnsReply(t *testing.T) {
	b := &mockBackend{name: "mock", reply: "Hello!"}
	c := NewClient(ClientConfig{Backend: b, Logger: testLogger()})
	before := metrics.AgentLatency.Count()

	got := c.Invoke(context.Background(), domain.AgentExchange{Text: "hi", SessionID: "slack-1-2", ThreadID: "1"})
	if got != "Hello!" {
		t.Fatalf("expected 'Hello!', got %q", got)
	}
	if b.last.Text != "hi" || b.last.SessionID != "slack-1-2" {
		t.Fatalf("exchange not forwarded: %+v", b.last)
	}
	if metrics.AgentLatency.Count() != before+1 {
		t.Fatal("expected latency to be observed")
	}
}

func TestClient_ErrorBecomesFallback(t *testing.T) {
	b := &mockBackend{name: "mock", err: errors.New("connection refused")}
	c := NewClient(ClientConfig{Backend: b, Logger: testLogger()})
	before := metrics.AgentFallbacks.Value()

	got := c.Invoke(context.Background(), domain.AgentExchange{Text: "hi"})
	if got != DefaultFallbackMessage {
		t.Fatalf("expected fallback message, got %q", got)
	}
	if metrics.AgentFallbacks.Value() != before+1 {
		t.Fatal("expected fallback counter to increment")
	}
}

func TestClient_EmptyReplyBecomesFallback(t *testing.T) {
	for _, reply := range []string{"", "  \n\t"} {
		c := NewClient(ClientConfig{Backend: &mockBackend{name: "mock", reply: reply}, Logger: testLogger()})
		if got := c.Invoke(context.Background(), domain.AgentExchange{}); got != DefaultFallbackMessage {
			t.Fatalf("reply %q: expected fallback, got %q", reply, got)
		}
	}
}

func TestClient_CustomFallback(t *testing.T) {
	c := NewClient(ClientConfig{
		Backend:         &mockBackend{name: "mock", err: errors.New("boom")},
		FallbackMessage: "Agent unavailable.",
		Logger:          testLogger(),
	})
	if got := c.Invoke(context.Background(), domain.AgentExchange{}); got != "Agent unavailable." {
		t.Fatalf("expected custom fallback, got %q", got)
	}
	if c.FallbackMessage() != "Agent unavailable." {
		t.Fatalf("unexpected FallbackMessage %q", c.FallbackMessage())
	}
}

func TestClient_FallbackDoesNotLeakError(t *testing.T) {
	c := NewClient(ClientConfig{Backend: &mockBackend{name: "mock", err: errors.New("AccessDeniedException: arn:aws:iam::123")}, Logger: testLogger()})
	got := c.Invoke(context.Background(), domain.AgentExchange{})
	if got != DefaultFallbackMessage {
		t.Fatalf("error details must not reach the user, got %q", got)
	}
}
