package reelauth_test

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/MrEthical07/reelauth"
	"github.com/MrEthical07/reelauth/internal/stores/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type sentMail struct {
	kind  string
	to    string
	token string
	user  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *recordingNotifier) NotifyVerification(_ context.Context, to, _, link string) error {
	return n.record("verify", to, link)
}

func (n *recordingNotifier) NotifyPasswordReset(_ context.Context, to, _, link string) error {
	return n.record("reset", to, link)
}

func (n *recordingNotifier) record(kind, to, link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: kind, to: to, token: u.Query().Get("token"), user: u.Query().Get("u")})
	return nil
}

func (n *recordingNotifier) last(t *testing.T, kind string) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i]
		}
	}
	t.Fatalf("no %s mail sent", kind)
	return sentMail{}
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if m.kind == kind {
			c++
		}
	}
	return c
}

type harness struct {
	engine   *reelauth.Engine
	store    *memory.Users
	notifier *recordingNotifier
	redis    *miniredis.Miniredis
	rdb      redis.UniversalClient
}

func testConfig() reelauth.Config {
	cfg := reelauth.DefaultConfig()
	cfg.JWT.CurrentKID = "k1"
	cfg.JWT.Keys = map[string][]byte{"k1": []byte("test-secret-k1-0123456789abcdef")}
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Tokens.HashCost = bcrypt.MinCost
	cfg.RateLimit.Mail = reelauth.RateLimitRule{}
	cfg.Links = reelauth.LinkConfig{ClientURL: "http://app.test", ServerURL: "http://api.test"}
	return cfg
}

func newHarness(t *testing.T, mutate func(*reelauth.Config)) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		store:    memory.NewUsers(),
		notifier: &recordingNotifier{},
		redis:    mr,
		rdb:      rdb,
	}
	h.engine = h.build(t, mutate)
	return h
}

func (h *harness) build(t *testing.T, mutate func(*reelauth.Config)) *reelauth.Engine {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := reelauth.New().
		WithConfig(cfg).
		WithRedis(h.rdb).
		WithUserStore(h.store).
		WithNotifier(h.notifier).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return engine
}

// verifiedUser registers and verifies an account, returning its id.
func (h *harness) verifiedUser(t *testing.T, email, password string) string {
	t.Helper()
	ctx := context.Background()
	res, err := h.engine.Register(ctx, reelauth.RegisterRequest{Email: email, Password: password})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	mail := h.notifier.last(t, "verify")
	if err := h.engine.VerifyEmail(ctx, mail.token, mail.user); err != nil {
		t.Fatalf("verify: %v", err)
	}
	return res.UserID
}

func withIP(ip string) context.Context {
	return reelauth.WithClientIP(context.Background(), ip)
}

