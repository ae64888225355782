package reelauth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/reelauth"
)

func TestVerifyEmailSingleUse(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.Register(ctx, reelauth.RegisterRequest{Email: "v@example.com", Password: "password1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	mail := h.notifier.last(t, "verify")

	if err := h.engine.VerifyEmail(ctx, mail.token, mail.user); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := h.engine.VerifyEmail(ctx, mail.token, mail.user); !errors.Is(err, reelauth.ErrVerificationInvalid) {
		t.Fatalf("expected reused link to fail, got %v", err)
	}

	u, err := h.store.FindByID(ctx, mail.user)
	if err != nil || !u.EmailVerified {
		t.Fatalf("expected verified user, got %+v %v", u, err)
	}
}

func TestVerifyEmailRejections(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.Register(ctx, reelauth.RegisterRequest{Email: "w@example.com", Password: "password1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	mail := h.notifier.last(t, "verify")

	if err := h.engine.VerifyEmail(ctx, mail.token, "not-an-id"); !errors.Is(err, reelauth.ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
	if err := h.engine.VerifyEmail(ctx, "", mail.user); !errors.Is(err, reelauth.ErrMissingField) {
		t.Fatalf("expected missing token, got %v", err)
	}
	if err := h.engine.VerifyEmail(ctx, tamper(mail.token), mail.user); !errors.Is(err, reelauth.ErrVerificationInvalid) {
		t.Fatalf("expected tampered token to fail, got %v", err)
	}

	h.redis.FastForward(25 * time.Hour)
	if err := h.engine.VerifyEmail(ctx, mail.token, mail.user); !errors.Is(err, reelauth.ErrVerificationInvalid) {
		t.Fatalf("expected expired link to fail, got %v", err)
	}
}

func TestVerifyEmailExpiryFollowsEngineClock(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	now := time.Date(2020, 5, 1, 10, 0, 0, 0, time.UTC)
	engine, err := reelauth.New().
		WithConfig(testConfig()).
		WithRedis(h.rdb).
		WithUserStore(h.store).
		WithNotifier(h.notifier).
		WithClock(func() time.Time { return now }).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := engine.Register(ctx, reelauth.RegisterRequest{Email: "clock@example.com", Password: "password1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	mail := h.notifier.last(t, "verify")

	// The Redis key still lives; only the engine clock moves past expiry.
	now = now.Add(24*time.Hour + time.Millisecond)
	if err := engine.VerifyEmail(ctx, mail.token, mail.user); !errors.Is(err, reelauth.ErrVerificationInvalid) {
		t.Fatalf("expected expired link to fail, got %v", err)
	}
}

func TestResendVerificationReplacesGrant(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.Register(ctx, reelauth.RegisterRequest{Email: "r@example.com", Password: "password1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	first := h.notifier.last(t, "verify")

	if err := h.engine.ResendVerification(ctx, "R@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	second := h.notifier.last(t, "verify")
	if second.token == first.token {
		t.Fatal("expected a fresh token")
	}

	if err := h.engine.VerifyEmail(ctx, first.token, first.user); !errors.Is(err, reelauth.ErrVerificationInvalid) {
		t.Fatalf("expected superseded link to fail, got %v", err)
	}
	if err := h.engine.VerifyEmail(ctx, second.token, second.user); err != nil {
		t.Fatalf("verify with fresh link: %v", err)
	}
}

func TestResendVerificationIsSilent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.engine.ResendVerification(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown email: %v", err)
	}
	h.verifiedUser(t, "done@example.com", "password1")
	before := h.notifier.count("verify")
	if err := h.engine.ResendVerification(ctx, "done@example.com"); err != nil {
		t.Fatalf("verified email: %v", err)
	}
	if h.notifier.count("verify") != before {
		t.Fatal("expected no mail for verified account")
	}
}

func TestResendVerificationThrottled(t *testing.T) {
	h := newHarness(t, func(cfg *reelauth.Config) {
		cfg.RateLimit.Mail = reelauth.RateLimitRule{Points: 1, Duration: time.Hour}
	})
	ctx := context.Background()

	if _, err := h.engine.Register(ctx, reelauth.RegisterRequest{Email: "t@example.com", Password: "password1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := h.engine.ResendVerification(ctx, "t@example.com"); err != nil {
			t.Fatalf("resend %d: %v", i, err)
		}
	}
	if got := h.notifier.count("verify"); got != 2 {
		t.Fatalf("expected register mail plus one resend, got %d", got)
	}
}

func tamper(token string) string {
	b := []byte(token)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	return string(b)
}
