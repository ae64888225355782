package flows

import "context"

// EmailVerificationDeps captures verify / resend dependencies.
type EmailVerificationDeps struct {
	Common

	ValidUserID       func(string) bool
	LoadGrant         func(context.Context, string) (*GrantRecord, error)
	MatchToken        func(raw, hash string) bool
	MarkVerified      func(context.Context, string) error
	FindUserByEmail   func(context.Context, string) (*UserRecord, error)
	AllowMail         func(context.Context, string) error
	QueueVerification func(context.Context, UserRecord) error
}

// RunVerifyEmail consumes the user's verification grant and marks the
// email verified. Every grant problem maps to one generic error.
func RunVerifyEmail(ctx context.Context, token, userID string, deps EmailVerificationDeps) error {
	deps.defaults()
	if deps.ValidUserID == nil || deps.LoadGrant == nil || deps.MatchToken == nil || deps.MarkVerified == nil {
		return deps.Errors.EngineNotReady
	}

	if token == "" {
		return deps.missing("token")
	}
	if userID == "" {
		return deps.missing("u")
	}
	if !deps.ValidUserID(userID) {
		deps.MetricInc(deps.Metrics.VerificationFailure)
		return deps.Errors.InvalidUserID
	}

	if err := consumeGrant(ctx, userID, token, deps.LoadGrant, deps.MatchToken, deps.Now); err != nil {
		if err == errGrantRejected {
			deps.MetricInc(deps.Metrics.VerificationFailure)
			return deps.Errors.VerificationInvalid
		}
		return err
	}

	if err := deps.MarkVerified(ctx, userID); err != nil {
		return err
	}

	deps.MetricInc(deps.Metrics.VerificationSuccess)
	return nil
}

// RunResendVerification queues a fresh verification mail for an unverified
// account. Unknown and already-verified addresses succeed silently.
func RunResendVerification(ctx context.Context, email string, deps EmailVerificationDeps) error {
	deps.defaults()
	if deps.FindUserByEmail == nil || deps.QueueVerification == nil {
		return deps.Errors.EngineNotReady
	}

	if email == "" {
		return deps.missing("email")
	}

	user, err := deps.FindUserByEmail(ctx, email)
	if err != nil {
		deps.Warn("flows: resend verification lookup failed", "error", err)
		return nil
	}
	if user == nil || user.EmailVerified {
		return nil
	}

	if deps.AllowMail != nil {
		if err := deps.AllowMail(ctx, email); err != nil {
			deps.Warn("flows: resend verification throttled", "user_id", user.ID, "error", err)
			return nil
		}
	}

	deps.MetricInc(deps.Metrics.VerificationRequest)
	if err := deps.QueueVerification(ctx, *user); err != nil {
		deps.Warn("flows: resend verification failed", "user_id", user.ID, "error", err)
	}
	return nil
}
