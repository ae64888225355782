package reelauth

import "context"

// Login authenticates email and password and issues a token pair. Both
// limiter axes are charged before the user is looked up; a successful
// login resets them.
//
// The caller IP is read from ctx; see [WithClientIP].
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Login(ctx, NormalizeEmail(email), password)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         publicFromFlow(res.User),
	}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// retired in the same update that stores its replacement.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         publicFromFlow(res.User),
	}, nil
}

// Logout revokes refreshToken. It never fails.
func (e *Engine) Logout(ctx context.Context, refreshToken string) {
	if !e.ready() {
		return
	}
	e.flow.Logout(ctx, refreshToken)
}
