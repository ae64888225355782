package flows

import (
	"context"
	"fmt"
)

// PasswordResetDeps captures forgot / reset dependencies.
type PasswordResetDeps struct {
	Common

	RequireVerified bool

	FindUserByEmail func(context.Context, string) (*UserRecord, error)
	AllowMail       func(context.Context, string) error
	NewToken        func() (string, error)
	HashToken       func(string) (string, error)
	IssueGrant      func(ctx context.Context, userID, hash string) error
	SendReset       func(ctx context.Context, user UserRecord, rawToken string) error

	CheckPassword func(string) error
	ValidUserID   func(string) bool
	LoadGrant     func(context.Context, string) (*GrantRecord, error)
	MatchToken    func(raw, hash string) bool
	HashPassword  func(string) (string, error)
	ResetPassword func(ctx context.Context, userID, hash string) error
	DeleteGrants  func(ctx context.Context, userID string) error
}

// RunRequestPasswordReset issues a reset grant and queues the mail. The
// caller always sees success; the token is generated and hashed even for
// unknown addresses so both paths do the same expensive work.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	deps.defaults()
	if deps.FindUserByEmail == nil || deps.NewToken == nil || deps.HashToken == nil ||
		deps.IssueGrant == nil || deps.SendReset == nil {
		return deps.Errors.EngineNotReady
	}

	if email == "" {
		return deps.missing("email")
	}

	raw, err := deps.NewToken()
	if err != nil {
		deps.Warn("flows: reset token generation failed", "error", err)
		return nil
	}
	hash, err := deps.HashToken(raw)
	if err != nil {
		deps.Warn("flows: reset token hashing failed", "error", err)
		return nil
	}

	user, err := deps.FindUserByEmail(ctx, email)
	if err != nil {
		deps.Warn("flows: reset lookup failed", "error", err)
		return nil
	}
	if user == nil {
		return nil
	}
	if deps.RequireVerified && !user.EmailVerified {
		return nil
	}

	if deps.AllowMail != nil {
		if err := deps.AllowMail(ctx, email); err != nil {
			deps.Warn("flows: reset request throttled", "user_id", user.ID, "error", err)
			return nil
		}
	}

	if err := deps.IssueGrant(ctx, user.ID, hash); err != nil {
		deps.Warn("flows: reset grant not stored", "user_id", user.ID, "error", err)
		return nil
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)
	if err := deps.SendReset(ctx, *user, raw); err != nil {
		deps.Warn("flows: reset mail not queued", "user_id", user.ID, "error", err)
	}
	return nil
}

// RunResetPassword validates and consumes the reset grant, then replaces the
// password hash and revokes every refresh token.
func RunResetPassword(ctx context.Context, token, userID, newPassword string, deps PasswordResetDeps) error {
	deps.defaults()
	if deps.ValidUserID == nil || deps.LoadGrant == nil || deps.MatchToken == nil ||
		deps.HashPassword == nil || deps.ResetPassword == nil {
		return deps.Errors.EngineNotReady
	}

	if token == "" {
		return deps.missing("token")
	}
	if userID == "" {
		return deps.missing("u")
	}
	if newPassword == "" {
		return deps.missing("password")
	}
	if deps.CheckPassword != nil {
		if err := deps.CheckPassword(newPassword); err != nil {
			return fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err)
		}
	}
	if !deps.ValidUserID(userID) {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		return deps.Errors.InvalidUserID
	}

	if err := consumeGrant(ctx, userID, token, deps.LoadGrant, deps.MatchToken, deps.Now); err != nil {
		if err == errGrantRejected {
			deps.MetricInc(deps.Metrics.PasswordResetFailure)
			return deps.Errors.ResetInvalid
		}
		return err
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := deps.ResetPassword(ctx, userID, hash); err != nil {
		return err
	}

	if deps.DeleteGrants != nil {
		if err := deps.DeleteGrants(ctx, userID); err != nil {
			deps.Warn("flows: reset grant cleanup failed", "user_id", userID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.PasswordResetSuccess)
	return nil
}
