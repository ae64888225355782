package flows

import "context"

// RefreshClaims is the verified content of a refresh token.
type RefreshClaims struct {
	UserID string
	JTI    string
}

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	Common

	ParseRefresh       func(string) (RefreshClaims, error)
	FindUserByID       func(context.Context, string) (*UserRecord, error)
	RotateSession      func(ctx context.Context, user UserRecord, oldToken, oldJTI string) (access, refresh string, err error)
	IsRotationMismatch func(error) bool
}

// RunRefresh verifies the presented refresh token, then atomically swaps
// its ledger entry for a fresh one. Every client-side failure maps to the
// same RefreshInvalid error.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (*SessionResult, error) {
	deps.defaults()
	if deps.ParseRefresh == nil || deps.FindUserByID == nil || deps.RotateSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if refreshToken == "" {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return nil, deps.Errors.RefreshMissing
	}

	claims, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return nil, deps.Errors.RefreshInvalid
	}

	user, err := deps.FindUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return nil, deps.Errors.RefreshInvalid
	}

	access, refresh, err := deps.RotateSession(ctx, *user, refreshToken, claims.JTI)
	if err != nil {
		if deps.IsRotationMismatch != nil && deps.IsRotationMismatch(err) {
			deps.MetricInc(deps.Metrics.RefreshReuseDetected)
			deps.MetricInc(deps.Metrics.RefreshFailure)
			deps.Warn("flows: refresh token not in ledger", "user_id", user.ID, "jti", claims.JTI)
			return nil, deps.Errors.RefreshInvalid
		}
		return nil, err
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	return &SessionResult{AccessToken: access, RefreshToken: refresh, User: *user}, nil
}
