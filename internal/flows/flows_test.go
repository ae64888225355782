package flows

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var (
	errNotReady     = errors.New("not ready")
	errInvalidCreds = errors.New("invalid credentials")
	errUnverified   = errors.New("unverified")
	errRateLimited  = errors.New("rate limited")
	errRefreshBad   = errors.New("refresh invalid")
	errRefreshNone  = errors.New("refresh missing")
	errResetBad     = errors.New("reset invalid")
	errBadUserID    = errors.New("bad user id")
	errPolicy       = errors.New("policy")
	errMismatch     = errors.New("ledger mismatch")
)

func testErrors() Errors {
	return Errors{
		EngineNotReady:      errNotReady,
		InvalidCredentials:  errInvalidCreds,
		EmailNotVerified:    errUnverified,
		RefreshInvalid:      errRefreshBad,
		RefreshMissing:      errRefreshNone,
		InvalidUserID:       errBadUserID,
		VerificationInvalid: errResetBad,
		ResetInvalid:        errResetBad,
		PasswordPolicy:      errPolicy,
		MissingField:        func(field string) error { return fmt.Errorf("%s is required", field) },
	}
}

type callLog []string

func (c *callLog) add(s string) { *c = append(*c, s) }

func loginDeps(calls *callLog, user *UserRecord, limited bool) LoginDeps {
	return LoginDeps{
		Common: Common{Errors: testErrors()},
		ConsumeRate: func(context.Context, string, string) error {
			calls.add("rate")
			if limited {
				return errRateLimited
			}
			return nil
		},
		IsRateLimited: func(err error) bool { return errors.Is(err, errRateLimited) },
		ResetRate: func(context.Context, string, string) error {
			calls.add("reset")
			return nil
		},
		FindUserByEmail: func(context.Context, string) (*UserRecord, error) {
			calls.add("find")
			return user, nil
		},
		VerifyPassword: func(password, hash string) (bool, error) {
			calls.add("verify")
			return password == hash, nil
		},
		BurnPasswordCheck: func(string) { calls.add("burn") },
		IssueSession: func(context.Context, UserRecord) (string, string, error) {
			calls.add("issue")
			return "access", "refresh", nil
		},
	}
}

func TestLoginRateLimitPrecedesLookup(t *testing.T) {
	var calls callLog
	user := &UserRecord{ID: "u1", PasswordHash: "pw", EmailVerified: true}

	_, err := RunLogin(context.Background(), "a@x.io", "pw", loginDeps(&calls, user, true))
	if !errors.Is(err, errRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if len(calls) != 1 || calls[0] != "rate" {
		t.Fatalf("expected only rate check, got %v", calls)
	}
}

func TestLoginUnknownUserBurnsPasswordCheck(t *testing.T) {
	var calls callLog

	_, err := RunLogin(context.Background(), "a@x.io", "pw", loginDeps(&calls, nil, false))
	if !errors.Is(err, errInvalidCreds) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if fmt.Sprint(calls) != "[rate find burn]" {
		t.Fatalf("unexpected call order %v", calls)
	}
}

func TestLoginUnverifiedOnlyAfterPasswordMatches(t *testing.T) {
	var calls callLog
	user := &UserRecord{ID: "u1", PasswordHash: "pw"}

	if _, err := RunLogin(context.Background(), "a@x.io", "wrong", loginDeps(&calls, user, false)); !errors.Is(err, errInvalidCreds) {
		t.Fatalf("wrong password must not reveal verification state, got %v", err)
	}
	if _, err := RunLogin(context.Background(), "a@x.io", "pw", loginDeps(&calls, user, false)); !errors.Is(err, errUnverified) {
		t.Fatalf("expected unverified, got %v", err)
	}
}

func TestLoginSuccessResetsRate(t *testing.T) {
	var calls callLog
	user := &UserRecord{ID: "u1", PasswordHash: "pw", EmailVerified: true}

	res, err := RunLogin(context.Background(), "a@x.io", "pw", loginDeps(&calls, user, false))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.AccessToken != "access" || res.RefreshToken != "refresh" || res.User.ID != "u1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if fmt.Sprint(calls) != "[rate find verify issue reset]" {
		t.Fatalf("unexpected call order %v", calls)
	}
}

func TestLoginMissingFields(t *testing.T) {
	var calls callLog
	_, err := RunLogin(context.Background(), "", "pw", loginDeps(&calls, nil, false))
	if err == nil || err.Error() != "email is required" {
		t.Fatalf("expected missing email, got %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("missing fields must not consume budget, got %v", calls)
	}
}

func TestLoginUpgradesHash(t *testing.T) {
	var calls callLog
	user := &UserRecord{ID: "u1", PasswordHash: "pw", EmailVerified: true}
	deps := loginDeps(&calls, user, false)
	deps.UpgradeOnLogin = true
	deps.PasswordNeedsUpgrade = func(string) (bool, error) { return true, nil }
	deps.HashPassword = func(string) (string, error) { return "new-hash", nil }
	var stored string
	deps.UpdatePasswordHash = func(_ context.Context, _ string, hash string) error {
		stored = hash
		return nil
	}

	if _, err := RunLogin(context.Background(), "a@x.io", "pw", deps); err != nil {
		t.Fatalf("login: %v", err)
	}
	if stored != "new-hash" {
		t.Fatalf("expected upgraded hash, got %q", stored)
	}
}

func refreshDeps(user *UserRecord, parseErr, rotateErr error) RefreshDeps {
	return RefreshDeps{
		Common: Common{Errors: testErrors()},
		ParseRefresh: func(string) (RefreshClaims, error) {
			if parseErr != nil {
				return RefreshClaims{}, parseErr
			}
			return RefreshClaims{UserID: "u1", JTI: "j1"}, nil
		},
		FindUserByID: func(context.Context, string) (*UserRecord, error) { return user, nil },
		RotateSession: func(context.Context, UserRecord, string, string) (string, string, error) {
			if rotateErr != nil {
				return "", "", rotateErr
			}
			return "a2", "r2", nil
		},
		IsRotationMismatch: func(err error) bool { return errors.Is(err, errMismatch) },
	}
}

func TestRefreshFailureClasses(t *testing.T) {
	user := &UserRecord{ID: "u1"}
	ctx := context.Background()

	if _, err := RunRefresh(ctx, "", refreshDeps(user, nil, nil)); !errors.Is(err, errRefreshNone) {
		t.Fatalf("expected missing, got %v", err)
	}
	if _, err := RunRefresh(ctx, "tok", refreshDeps(user, errors.New("bad sig"), nil)); !errors.Is(err, errRefreshBad) {
		t.Fatalf("expected invalid on bad signature, got %v", err)
	}
	if _, err := RunRefresh(ctx, "tok", refreshDeps(nil, nil, nil)); !errors.Is(err, errRefreshBad) {
		t.Fatalf("expected invalid on unknown user, got %v", err)
	}
	if _, err := RunRefresh(ctx, "tok", refreshDeps(user, nil, errMismatch)); !errors.Is(err, errRefreshBad) {
		t.Fatalf("expected invalid on ledger miss, got %v", err)
	}

	storeDown := errors.New("store down")
	if _, err := RunRefresh(ctx, "tok", refreshDeps(user, nil, storeDown)); !errors.Is(err, storeDown) {
		t.Fatalf("expected infrastructure error passthrough, got %v", err)
	}

	res, err := RunRefresh(ctx, "tok", refreshDeps(user, nil, nil))
	if err != nil || res.AccessToken != "a2" || res.RefreshToken != "r2" {
		t.Fatalf("unexpected success result %+v err=%v", res, err)
	}
}

func resetDeps(calls *callLog, grant *GrantRecord) PasswordResetDeps {
	return PasswordResetDeps{
		Common:        Common{Errors: testErrors()},
		CheckPassword: func(p string) error {
			if len(p) < 8 {
				return errors.New("too short")
			}
			return nil
		},
		ValidUserID: func(id string) bool { return id == "u1" },
		LoadGrant: func(context.Context, string) (*GrantRecord, error) {
			calls.add("load")
			return grant, nil
		},
		MatchToken:   func(raw, hash string) bool { return raw == hash },
		HashPassword: func(p string) (string, error) { return "h:" + p, nil },
		ResetPassword: func(context.Context, string, string) error {
			calls.add("reset")
			return nil
		},
		DeleteGrants: func(context.Context, string) error {
			calls.add("delete")
			return nil
		},
	}
}

func TestResetPasswordOrdering(t *testing.T) {
	ctx := context.Background()
	live := func() *GrantRecord {
		return &GrantRecord{
			Hash:      "tok",
			ExpiresAt: time.Now().Add(time.Minute),
			Consume:   func(context.Context) (bool, error) { return true, nil },
		}
	}

	var calls callLog
	if err := RunResetPassword(ctx, "tok", "u1", "short", resetDeps(&calls, live())); !errors.Is(err, errPolicy) {
		t.Fatalf("expected policy error, got %v", err)
	}
	if err := RunResetPassword(ctx, "tok", "nope", "long-enough", resetDeps(&calls, live())); !errors.Is(err, errBadUserID) {
		t.Fatalf("expected invalid user id, got %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("grant must not be touched before input checks, got %v", calls)
	}

	if err := RunResetPassword(ctx, "wrong", "u1", "long-enough", resetDeps(&calls, live())); !errors.Is(err, errResetBad) {
		t.Fatalf("expected mismatch rejection, got %v", err)
	}
	if fmt.Sprint(calls) != "[load]" {
		t.Fatalf("password must not change on bad grant, got %v", calls)
	}

	calls = nil
	if err := RunResetPassword(ctx, "tok", "u1", "long-enough", resetDeps(&calls, live())); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if fmt.Sprint(calls) != "[load reset delete]" {
		t.Fatalf("unexpected call order %v", calls)
	}
}

func TestResetPasswordRejectsExpiredAndLostRace(t *testing.T) {
	ctx := context.Background()

	var calls callLog
	expired := &GrantRecord{Hash: "tok", ExpiresAt: time.Now().Add(-time.Second)}
	if err := RunResetPassword(ctx, "tok", "u1", "long-enough", resetDeps(&calls, expired)); !errors.Is(err, errResetBad) {
		t.Fatalf("expected expired rejection, got %v", err)
	}

	lost := &GrantRecord{
		Hash:      "tok",
		ExpiresAt: time.Now().Add(time.Minute),
		Consume:   func(context.Context) (bool, error) { return false, nil },
	}
	if err := RunResetPassword(ctx, "tok", "u1", "long-enough", resetDeps(&calls, lost)); !errors.Is(err, errResetBad) {
		t.Fatalf("expected lost race rejection, got %v", err)
	}

	if err := RunResetPassword(ctx, "tok", "u1", "long-enough", resetDeps(&calls, nil)); !errors.Is(err, errResetBad) {
		t.Fatalf("expected missing grant rejection, got %v", err)
	}
}

func TestRequestPasswordResetIsSilent(t *testing.T) {
	ctx := context.Background()
	var issued, sent int
	deps := PasswordResetDeps{
		Common:          Common{Errors: testErrors()},
		RequireVerified: true,
		FindUserByEmail: func(_ context.Context, email string) (*UserRecord, error) {
			switch email {
			case "verified@x.io":
				return &UserRecord{ID: "u1", Email: email, EmailVerified: true}, nil
			case "pending@x.io":
				return &UserRecord{ID: "u2", Email: email}, nil
			}
			return nil, nil
		},
		NewToken:   func() (string, error) { return "raw", nil },
		HashToken:  func(s string) (string, error) { return "h:" + s, nil },
		IssueGrant: func(context.Context, string, string) error { issued++; return nil },
		SendReset:  func(context.Context, UserRecord, string) error { sent++; return nil },
	}

	for _, email := range []string{"ghost@x.io", "pending@x.io", "verified@x.io"} {
		if err := RunRequestPasswordReset(ctx, email, deps); err != nil {
			t.Fatalf("%s: expected silent success, got %v", email, err)
		}
	}
	if issued != 1 || sent != 1 {
		t.Fatalf("expected one grant and one mail, got issued=%d sent=%d", issued, sent)
	}
}
