package grants

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testUser = "64b7f0c2a1b2c3d4e5f60718"

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, NewStore(rdb, "", nil)
}

func TestIssueAndGet(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour).Truncate(time.Second)

	if err := s.Issue(ctx, KindEmailVerification, testUser, "hash-1", expires); err != nil {
		t.Fatalf("issue: %v", err)
	}

	g, err := s.Get(ctx, KindEmailVerification, testUser)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g.UserID != testUser || g.Hash != "hash-1" || !g.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected grant: %+v", g)
	}

	if _, err := s.Get(ctx, KindPasswordReset, testUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected kinds to be separate, got %v", err)
	}
}

func TestIssueReplacesPreviousGrant(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	_ = s.Issue(ctx, KindPasswordReset, testUser, "old", expires)
	_ = s.Issue(ctx, KindPasswordReset, testUser, "new", expires)

	g, err := s.Get(ctx, KindPasswordReset, testUser)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g.Hash != "new" {
		t.Fatalf("expected newest grant, got %q", g.Hash)
	}
}

func TestGrantExpires(t *testing.T) {
	mr, s := newTestStore(t)
	ctx := context.Background()

	if err := s.Issue(ctx, KindPasswordReset, testUser, "h", time.Now().Add(30*time.Minute)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	mr.FastForward(31 * time.Minute)

	if _, err := s.Get(ctx, KindPasswordReset, testUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired grant to vanish, got %v", err)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()
	_ = s.Issue(ctx, KindEmailVerification, testUser, "h", time.Now().Add(time.Hour))

	first, _ := s.Get(ctx, KindEmailVerification, testUser)
	second, _ := s.Get(ctx, KindEmailVerification, testUser)

	if err := s.Consume(ctx, KindEmailVerification, first); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := s.Consume(ctx, KindEmailVerification, second); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second consume to lose, got %v", err)
	}
}

func TestConsumeRejectsReplacedGrant(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	_ = s.Issue(ctx, KindPasswordReset, testUser, "old", expires)
	stale, _ := s.Get(ctx, KindPasswordReset, testUser)
	_ = s.Issue(ctx, KindPasswordReset, testUser, "new", expires.Add(time.Second))

	if err := s.Consume(ctx, KindPasswordReset, stale); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected stale grant consume to fail, got %v", err)
	}
	if _, err := s.Get(ctx, KindPasswordReset, testUser); err != nil {
		t.Fatalf("replacement grant must survive: %v", err)
	}
}

func TestDeleteAll(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()
	_ = s.Issue(ctx, KindPasswordReset, testUser, "h", time.Now().Add(time.Hour))

	if err := s.DeleteAll(ctx, KindPasswordReset, testUser); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if _, err := s.Get(ctx, KindPasswordReset, testUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected grant removed, got %v", err)
	}
}

func TestCorruptRecordReadsAsNotFound(t *testing.T) {
	mr, s := newTestStore(t)
	if err := mr.Set("grant:ev:"+testUser, "\x09garbage"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Get(context.Background(), KindEmailVerification, testUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIssueUsesInjectedClock(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	// Far in the past: a wall-clock TTL would already be negative.
	now := time.Date(2020, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewStore(rdb, "", func() time.Time { return now })
	expires := now.Add(90*time.Second + 250*time.Millisecond)

	if err := s.Issue(context.Background(), KindPasswordReset, testUser, "h", expires); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ttl := mr.TTL("grant:pr:" + testUser); ttl != 90*time.Second+250*time.Millisecond {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	g, err := s.Get(context.Background(), KindPasswordReset, testUser)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !g.ExpiresAt.Equal(expires) {
		t.Fatalf("expiry lost precision: got %v want %v", g.ExpiresAt, expires)
	}

	if err := s.Issue(context.Background(), KindPasswordReset, testUser, "h", now); err == nil {
		t.Fatal("expected an already-expired grant to be rejected")
	}
}

func TestDecodeSecondPrecisionRecord(t *testing.T) {
	legacy := []byte{recordVersionV1}
	legacy = binary.BigEndian.AppendUint64(legacy, uint64(1700000000))
	legacy = binary.BigEndian.AppendUint16(legacy, uint16(len(testUser)))
	legacy = append(legacy, testUser...)
	legacy = binary.BigEndian.AppendUint16(legacy, 1)
	legacy = append(legacy, 'h')

	g, err := decodeRecord(legacy)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if g.UserID != testUser || g.Hash != "h" || !g.ExpiresAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected grant %+v", g)
	}
}
