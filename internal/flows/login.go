package flows

import "context"

// SessionResult is the issued token pair plus the authenticated user.
type SessionResult struct {
	AccessToken  string
	RefreshToken string
	User         UserRecord
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Common

	UpgradeOnLogin bool

	ClientIP      func(context.Context) string
	ConsumeRate   func(ctx context.Context, email, ip string) error
	IsRateLimited func(error) bool
	ResetRate     func(ctx context.Context, email, ip string) error

	FindUserByEmail      func(context.Context, string) (*UserRecord, error)
	VerifyPassword       func(password, hash string) (bool, error)
	BurnPasswordCheck    func(password string)
	PasswordNeedsUpgrade func(hash string) (bool, error)
	HashPassword         func(string) (string, error)
	UpdatePasswordHash   func(ctx context.Context, userID, hash string) error

	IssueSession func(context.Context, UserRecord) (access, refresh string, err error)
}

// RunLogin authenticates email and password. Rate-limit budget is spent
// before the user lookup; unknown users and wrong passwords share one error.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*SessionResult, error) {
	deps.defaults()
	if deps.FindUserByEmail == nil || deps.VerifyPassword == nil || deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.ClientIP == nil {
		deps.ClientIP = func(context.Context) string { return "" }
	}

	if email == "" {
		return nil, deps.missing("email")
	}
	if password == "" {
		return nil, deps.missing("password")
	}

	ip := deps.ClientIP(ctx)
	if deps.ConsumeRate != nil {
		if err := deps.ConsumeRate(ctx, email, ip); err != nil {
			if deps.IsRateLimited != nil && deps.IsRateLimited(err) {
				deps.MetricInc(deps.Metrics.LoginRateLimited)
			}
			return nil, err
		}
	}

	user, err := deps.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if deps.BurnPasswordCheck != nil {
			deps.BurnPasswordCheck(password)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.InvalidCredentials
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		deps.Warn("flows: stored password hash unreadable", "user_id", user.ID, "error", err)
		ok = false
	}
	if !ok {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.InvalidCredentials
	}

	if !user.EmailVerified {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.EmailNotVerified
	}

	access, refresh, err := deps.IssueSession(ctx, *user)
	if err != nil {
		return nil, err
	}

	if deps.ResetRate != nil {
		if err := deps.ResetRate(ctx, email, ip); err != nil {
			deps.Warn("flows: login rate reset failed", "user_id", user.ID, "error", err)
		}
	}

	if deps.UpgradeOnLogin {
		upgradePasswordHash(ctx, *user, password, deps)
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	return &SessionResult{AccessToken: access, RefreshToken: refresh, User: *user}, nil
}

func upgradePasswordHash(ctx context.Context, user UserRecord, password string, deps LoginDeps) {
	if deps.PasswordNeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return
	}
	needs, err := deps.PasswordNeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("flows: password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := deps.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		deps.Warn("flows: password hash upgrade not persisted", "user_id", user.ID, "error", err)
		return
	}
	deps.MetricInc(deps.Metrics.PasswordHashUpgraded)
}
