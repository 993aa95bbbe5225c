package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"slackbridge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeStore is an in-memory domain.SessionStore with call counters and
// injectable failures.
type fakeStore struct {
	mu      sync.Mutex
	records map[domain.SessionKey]domain.SessionRecord

	getErr   error
	putErr   error
	touchErr error

	gets, puts, touches int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[domain.SessionKey]domain.SessionRecord)}
}

func (f *fakeStore) GetSession(ctx context.Context, key domain.SessionKey) (*domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeStore) PutSession(ctx context.Context, rec domain.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	f.records[rec.Key] = rec
	return nil
}

func (f *fakeStore) TouchSession(ctx context.Context, key domain.SessionKey, lastActivity, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++
	if f.touchErr != nil {
		return f.touchErr
	}
	rec, ok := f.records[key]
	if !ok {
		return ErrSessionNotFound
	}
	rec.LastActivity = lastActivity
	rec.ExpiresAt = expiresAt
	f.records[key] = rec
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(store domain.SessionStore, clock *fakeClock) *Manager {
	return NewManager(ManagerConfig{Store: store, TTL: DefaultTTL, Now: clock.Now, Logger: testLogger()})
}

func TestResolveSession_CreatesOnFirstMessage(t *testing.T) {
	store := newFakeStore()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	m := newTestManager(store, clock)

	id := m.ResolveSession(context.Background(), "100.1", "C1", "U1")

	if id != "slack-100.1-1700000000" {
		t.Fatalf("unexpected session id %q", id)
	}
	if store.puts != 1 {
		t.Fatalf("expected 1 create, got %d", store.puts)
	}
	rec := store.records[domain.SessionKey{ThreadID: "100.1", ChannelID: "C1"}]
	if !rec.ExpiresAt.Equal(clock.t.Add(24 * time.Hour)) {
		t.Fatalf("expected expiry now+24h, got %v", rec.ExpiresAt)
	}
	if rec.UserID != "U1" {
		t.Fatalf("expected user U1, got %q", rec.UserID)
	}
}

func TestResolveSession_IdempotentAndExtendsExpiry(t *testing.T) {
	store := newFakeStore()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	m := newTestManager(store, clock)
	key := domain.SessionKey{ThreadID: "100.1", ChannelID: "C1"}

	first := m.ResolveSession(context.Background(), "100.1", "C1", "U1")
	firstExpiry := store.records[key].ExpiresAt

	clock.Advance(time.Hour)
	second := m.ResolveSession(context.Background(), "100.1", "C1", "U2")

	if first != second {
		t.Fatalf("session id changed: %q -> %q", first, second)
	}
	if store.puts != 1 {
		t.Fatalf("expected exactly 1 create, got %d", store.puts)
	}
	if store.touches != 1 {
		t.Fatalf("expected 1 refresh, got %d", store.touches)
	}
	if got := store.records[key].ExpiresAt; !got.After(firstExpiry) {
		t.Fatalf("expiry not extended: %v -> %v", firstExpiry, got)
	}
}

func TestResolveSession_NeverShortensExpiry(t *testing.T) {
	store := newFakeStore()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	key := domain.SessionKey{ThreadID: "1.0", ChannelID: "C1"}
	far := clock.t.Add(72 * time.Hour)
	store.records[key] = domain.SessionRecord{Key: key, AgentSessionID: "existing", ExpiresAt: far}

	id := newTestManager(store, clock).ResolveSession(context.Background(), "1.0", "C1", "U1")

	if id != "existing" {
		t.Fatalf("expected existing id, got %q", id)
	}
	if got := store.records[key].ExpiresAt; !got.Equal(far) {
		t.Fatalf("expiry shortened from %v to %v", far, got)
	}
}

func TestResolveSession_ExpiredRecordReplaced(t *testing.T) {
	store := newFakeStore()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	key := domain.SessionKey{ThreadID: "1.0", ChannelID: "C1"}
	store.records[key] = domain.SessionRecord{Key: key, AgentSessionID: "stale", ExpiresAt: clock.t.Add(-time.Second)}

	id := newTestManager(store, clock).ResolveSession(context.Background(), "1.0", "C1", "U1")

	if id == "stale" {
		t.Fatal("expired session id should not be reused")
	}
	if store.records[key].AgentSessionID != id {
		t.Fatalf("new record not stored")
	}
}

func TestResolveSession_ChannelScopesThread(t *testing.T) {
	store := newFakeStore()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	m := newTestManager(store, clock)

	m.ResolveSession(context.Background(), "1.0", "C1", "U1")
	m.ResolveSession(context.Background(), "1.0", "C2", "U1")

	if store.puts != 2 {
		t.Fatalf("same ts in different channels should create 2 records, got %d", store.puts)
	}
}

func TestResolveSession_GetFailureFallsBack(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	id := newTestManager(store, clock).ResolveSession(context.Background(), "100.1", "C1", "U1")

	if id != "fallback-100.1" {
		t.Fatalf("expected fallback id, got %q", id)
	}
	if store.puts != 0 {
		t.Fatalf("no write expected after failed read, got %d", store.puts)
	}
}

func TestResolveSession_PutFailureFallsBack(t *testing.T) {
	store := newFakeStore()
	store.putErr = errors.New("throttled")
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	id := newTestManager(store, clock).ResolveSession(context.Background(), "100.1", "C1", "U1")

	if !strings.HasPrefix(id, FallbackPrefix) {
		t.Fatalf("expected fallback id, got %q", id)
	}
}

func TestResolveSession_TouchFailureKeepsID(t *testing.T) {
	store := newFakeStore()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	key := domain.SessionKey{ThreadID: "1.0", ChannelID: "C1"}
	store.records[key] = domain.SessionRecord{Key: key, AgentSessionID: "existing", ExpiresAt: clock.t.Add(time.Hour)}
	store.touchErr = errors.New("timeout")

	id := newTestManager(store, clock).ResolveSession(context.Background(), "1.0", "C1", "U1")

	if id != "existing" {
		t.Fatalf("expected stored id despite refresh failure, got %q", id)
	}
}

func TestResolveSession_ConcurrentFirstMessagesConverge(t *testing.T) {
	store := newFakeStore()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	m := newTestManager(store, clock)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.ResolveSession(context.Background(), "9.9", "C1", "U1")
		}()
	}
	wg.Wait()

	key := domain.SessionKey{ThreadID: "9.9", ChannelID: "C1"}
	stored := store.records[key].AgentSessionID
	if stored == "" {
		t.Fatal("no record stored")
	}
	if got := m.ResolveSession(context.Background(), "9.9", "C1", "U1"); got != stored {
		t.Fatalf("later message should converge on stored id %q, got %q", stored, got)
	}
}

func TestFallbackSessionID_Deterministic(t *testing.T) {
	if FallbackSessionID("1.2") != FallbackSessionID("1.2") {
		t.Fatal("fallback id should be deterministic")
	}
	if NewSessionID("1.2", time.Unix(5, 0)) == FallbackSessionID("1.2") {
		t.Fatal("fallback id must be distinguishable from stored ids")
	}
}
