package provider

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"slackbridge/internal/domain"
)

// mockBackend implements Backend for testing.
type mockBackend struct {
	name  string
	reply string
	err   error
	calls int
	last  domain.AgentExchange
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) Invoke(ctx context.Context, ex domain.AgentExchange) (string, error) {
	m.calls++
	m.last = ex
	return m.reply, m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFailover_UsesFirstBackend(t *testing.T) {
	b1 := &mockBackend{name: "primary", reply: "from-primary"}
	b2 := &mockBackend{name: "secondary", reply: "from-secondary"}
	f := NewFailover([]Backend{b1, b2}, testLogger())

	reply, err := f.Invoke(context.Background(), domain.AgentExchange{Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "from-primary" {
		t.Fatalf("expected 'from-primary', got %q", reply)
	}
	if b2.calls != 0 {
		t.Fatalf("secondary should not be called, got %d calls", b2.calls)
	}
}

func TestFailover_FallsBackOnError(t *testing.T) {
	b1 := &mockBackend{name: "primary", err: errors.New("throttled")}
	b2 := &mockBackend{name: "secondary", reply: "from-secondary"}
	f := NewFailover([]Backend{b1, b2}, testLogger())

	reply, err := f.Invoke(context.Background(), domain.AgentExchange{SessionID: "s-1", Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "from-secondary" {
		t.Fatalf("expected 'from-secondary', got %q", reply)
	}
	if b2.last.SessionID != "s-1" {
		t.Fatalf("exchange not forwarded: %+v", b2.last)
	}
}

func TestFailover_FallsBackOnEmptyReply(t *testing.T) {
	b1 := &mockBackend{name: "primary", reply: "   "}
	b2 := &mockBackend{name: "secondary", reply: "ok"}
	f := NewFailover([]Backend{b1, b2}, testLogger())

	reply, err := f.Invoke(context.Background(), domain.AgentExchange{})
	if err != nil || reply != "ok" {
		t.Fatalf("expected 'ok', got %q, %v", reply, err)
	}
}

func TestFailover_AllBackendsFail(t *testing.T) {
	last := errors.New("fail 2")
	b1 := &mockBackend{name: "b1", err: errors.New("fail 1")}
	b2 := &mockBackend{name: "b2", err: last}
	f := NewFailover([]Backend{b1, b2}, testLogger())

	_, err := f.Invoke(context.Background(), domain.AgentExchange{})
	if !errors.Is(err, last) {
		t.Fatalf("expected wrapped last error, got %v", err)
	}
}

func TestFailover_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b1 := &mockBackend{name: "b1", err: context.Canceled}
	b2 := &mockBackend{name: "b2", reply: "late"}
	f := NewFailover([]Backend{b1, b2}, testLogger())

	if _, err := f.Invoke(ctx, domain.AgentExchange{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if b2.calls != 0 {
		t.Fatal("no further backends should be tried after cancellation")
	}
}

func TestFailover_Empty(t *testing.T) {
	if _, err := NewFailover(nil, testLogger()).Invoke(context.Background(), domain.AgentExchange{}); err == nil {
		t.Fatal("expected error for empty chain")
	}
}

func TestFailover_Name(t *testing.T) {
	f := NewFailover([]Backend{&mockBackend{name: "bedrock"}, &mockBackend{name: "http"}}, testLogger())
	if name := f.Name(); name != "failover(bedrock→http)" {
		t.Fatalf("expected 'failover(bedrock→http)', got %q", name)
	}
}
