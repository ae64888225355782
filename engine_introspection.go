package reelauth

import (
	"context"
	"fmt"
	"time"
)

// ValidateAccess verifies an access token's signature, kid, type, issuer
// and expiry. No store is consulted.
func (e *Engine) ValidateAccess(token string) (*Identity, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()

	if token == "" {
		e.metricInc(MetricAccessDenied)
		return nil, ErrUnauthorized
	}
	claims, err := e.jwt.ParseAccess(token)
	if err != nil {
		e.metricInc(MetricAccessDenied)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// Profile loads the user record for an authenticated caller.
func (e *Engine) Profile(ctx context.Context, userID string) (*User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !ValidUserID(userID) {
		return nil, ErrInvalidUserID
	}
	return e.store.FindByID(ctx, userID)
}

// ActiveSessionCount returns how many refresh tokens the user holds.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	u, err := e.Profile(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(u.RefreshTokens), nil
}
