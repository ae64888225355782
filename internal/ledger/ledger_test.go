package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/reelauth/internal/tokens"
	"golang.org/x/crypto/bcrypt"
)

type mockBackend struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

func newMockBackend() *mockBackend {
	return &mockBackend{entries: map[string][]Entry{}}
}

func (m *mockBackend) PushRefreshToken(_ context.Context, userID string, entry Entry, max int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.entries[userID], entry)
	if len(list) > max {
		list = list[len(list)-max:]
	}
	m.entries[userID] = list
	return nil
}

func (m *mockBackend) PullRefreshToken(_ context.Context, userID, jti string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.entries[userID][:0:0]
	for _, e := range m.entries[userID] {
		if e.JTI != jti {
			out = append(out, e)
		}
	}
	m.entries[userID] = out
	return nil
}

func (m *mockBackend) ReplaceRefreshToken(_ context.Context, userID, oldJTI string, entry Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries[userID] {
		if e.JTI == oldJTI {
			m.entries[userID][i] = entry
			return true, nil
		}
	}
	return false, nil
}

func (m *mockBackend) ClearRefreshTokens(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}

func (m *mockBackend) snapshot(userID string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries[userID]...)
}

func newTestLedger(backend Backend, max int) *Ledger {
	return New(backend, tokens.NewHasher(bcrypt.MinCost), max, nil)
}

func TestStoreHashesToken(t *testing.T) {
	b := newMockBackend()
	l := newTestLedger(b, 0)

	if err := l.Store(context.Background(), "u1", "j1", "raw-token"); err != nil {
		t.Fatalf("store: %v", err)
	}
	got := b.snapshot("u1")
	if len(got) != 1 || got[0].JTI != "j1" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if got[0].Hash == "raw-token" || got[0].Hash == "" {
		t.Fatal("raw token must not be stored")
	}
}

func TestStoreCapsEntries(t *testing.T) {
	b := newMockBackend()
	l := newTestLedger(b, 2)
	ctx := context.Background()

	for _, jti := range []string{"j1", "j2", "j3"} {
		if err := l.Store(ctx, "u1", jti, "raw-"+jti); err != nil {
			t.Fatalf("store %s: %v", jti, err)
		}
	}
	got := b.snapshot("u1")
	if len(got) != 2 || got[0].JTI != "j2" || got[1].JTI != "j3" {
		t.Fatalf("expected oldest entry dropped, got %+v", got)
	}
}

func TestRotateReplacesMatchingEntry(t *testing.T) {
	b := newMockBackend()
	l := newTestLedger(b, 0)
	ctx := context.Background()

	_ = l.Store(ctx, "u1", "j1", "raw-1")
	_ = l.Store(ctx, "u1", "j2", "raw-2")

	if err := l.Rotate(ctx, "u1", b.snapshot("u1"), "j2", "raw-2", "j3", "raw-3"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	got := b.snapshot("u1")
	if len(got) != 2 || got[0].JTI != "j1" || got[1].JTI != "j3" {
		t.Fatalf("unexpected entries after rotate: %+v", got)
	}

	if err := l.Rotate(ctx, "u1", b.snapshot("u1"), "j2", "raw-2", "j4", "raw-4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rotated-out token to be rejected, got %v", err)
	}
}

func TestRotateLosesRaceOnStaleSnapshot(t *testing.T) {
	b := newMockBackend()
	l := newTestLedger(b, 0)
	ctx := context.Background()

	_ = l.Store(ctx, "u1", "j1", "raw-1")
	stale := b.snapshot("u1")

	if err := l.Rotate(ctx, "u1", stale, "j1", "raw-1", "j2", "raw-2"); err != nil {
		t.Fatalf("first rotate: %v", err)
	}
	if err := l.Rotate(ctx, "u1", stale, "j1", "raw-1", "j3", "raw-3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected concurrent rotate to fail, got %v", err)
	}
	if got := b.snapshot("u1"); len(got) != 1 || got[0].JTI != "j2" {
		t.Fatalf("expected single winner entry, got %+v", got)
	}
}

func TestRemoveScansWithoutHint(t *testing.T) {
	b := newMockBackend()
	l := newTestLedger(b, 0)
	ctx := context.Background()

	_ = l.Store(ctx, "u1", "j1", "raw-1")
	_ = l.Store(ctx, "u1", "j2", "raw-2")

	removed, err := l.Remove(ctx, "u1", b.snapshot("u1"), "", "raw-1")
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	if got := b.snapshot("u1"); len(got) != 1 || got[0].JTI != "j2" {
		t.Fatalf("unexpected entries: %+v", got)
	}

	removed, err = l.Remove(ctx, "u1", b.snapshot("u1"), "j1", "raw-1")
	if err != nil || removed {
		t.Fatalf("expected no-op for unknown token: removed=%v err=%v", removed, err)
	}
}

func TestClear(t *testing.T) {
	b := newMockBackend()
	l := newTestLedger(b, 0)
	ctx := context.Background()

	_ = l.Store(ctx, "u1", "j1", "raw-1")
	if err := l.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := b.snapshot("u1"); len(got) != 0 {
		t.Fatalf("expected empty ledger, got %+v", got)
	}
}
