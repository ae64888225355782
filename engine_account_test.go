package reelauth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/reelauth"
)

func TestRegisterNormalizesEmailAndDefaultsDisplayName(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.engine.Register(context.Background(), reelauth.RegisterRequest{
		Email:    "  Alice@Example.COM ",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", res.Email)
	}
	if res.DisplayName != "alice" {
		t.Fatalf("expected local-part display name, got %q", res.DisplayName)
	}
	if !reelauth.ValidUserID(res.UserID) {
		t.Fatalf("expected object id, got %q", res.UserID)
	}

	mail := h.notifier.last(t, "verify")
	if mail.to != "alice@example.com" || mail.user != res.UserID || len(mail.token) != 64 {
		t.Fatalf("unexpected verification mail %+v", mail)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.Register(ctx, reelauth.RegisterRequest{Email: "bob@example.com", Password: "password1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := h.engine.Register(ctx, reelauth.RegisterRequest{Email: "BOB@example.com", Password: "password2"})
	if !errors.Is(err, reelauth.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if got := h.engine.MetricsSnapshot().Counters[reelauth.MetricRegisterDuplicate]; got != 1 {
		t.Fatalf("expected duplicate metric 1, got %d", got)
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.engine.Register(ctx, reelauth.RegisterRequest{Password: "password1"})
	var fe *reelauth.FieldError
	if !errors.As(err, &fe) || fe.Field != "email" || !errors.Is(err, reelauth.ErrMissingField) {
		t.Fatalf("expected missing email field error, got %v", err)
	}

	_, err = h.engine.Register(ctx, reelauth.RegisterRequest{Email: "c@example.com", Password: "short"})
	if !errors.Is(err, reelauth.ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}

	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	_, err = h.engine.Register(ctx, reelauth.RegisterRequest{Email: "c@example.com", Password: string(long)})
	if !errors.Is(err, reelauth.ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy for 73 bytes, got %v", err)
	}
}

func TestEngineNotReady(t *testing.T) {
	var e *reelauth.Engine
	if _, err := e.Register(context.Background(), reelauth.RegisterRequest{}); !errors.Is(err, reelauth.ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := (&reelauth.Engine{}).Login(context.Background(), "a", "b"); !errors.Is(err, reelauth.ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestBuilderRejectsReuseAndBadConfig(t *testing.T) {
	h := newHarness(t, nil)

	b := reelauth.New().WithConfig(testConfig()).WithRedis(h.rdb).WithUserStore(h.store)
	if _, err := b.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second build to fail")
	}

	cfg := testConfig()
	cfg.JWT.CurrentKID = "missing"
	if _, err := reelauth.New().WithConfig(cfg).WithRedis(h.rdb).WithUserStore(h.store).Build(); err == nil {
		t.Fatal("expected unknown current kid to fail")
	}

	if _, err := reelauth.New().WithConfig(testConfig()).WithUserStore(h.store).Build(); err == nil {
		t.Fatal("expected missing redis to fail")
	}
}
