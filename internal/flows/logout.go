package flows

import "context"

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Common

	ParseRefresh  func(string) (RefreshClaims, error)
	FindUserByID  func(context.Context, string) (*UserRecord, error)
	RemoveSession func(ctx context.Context, user UserRecord, token, jti string) (bool, error)
}

// RunLogout removes the presented refresh token from its owner's ledger.
// It is best effort: every failure is swallowed.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) {
	deps.defaults()
	deps.MetricInc(deps.Metrics.Logout)
	if refreshToken == "" || deps.ParseRefresh == nil || deps.FindUserByID == nil || deps.RemoveSession == nil {
		return
	}

	claims, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		return
	}

	user, err := deps.FindUserByID(ctx, claims.UserID)
	if err != nil {
		deps.Warn("flows: logout user lookup failed", "user_id", claims.UserID, "error", err)
		return
	}
	if user == nil {
		return
	}

	if _, err := deps.RemoveSession(ctx, *user, refreshToken, claims.JTI); err != nil {
		deps.Warn("flows: logout ledger removal failed", "user_id", user.ID, "error", err)
	}
}
