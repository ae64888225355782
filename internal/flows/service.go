package flows

import "context"

// Service is the flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired.
func (s Service) Initialized() bool {
	return s.deps.Login.FindUserByEmail != nil
}

func (s Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	return RunRegister(ctx, req, s.deps.Account)
}

func (s Service) VerifyEmail(ctx context.Context, token, userID string) error {
	return RunVerifyEmail(ctx, token, userID, s.deps.EmailVerification)
}

func (s Service) ResendVerification(ctx context.Context, email string) error {
	return RunResendVerification(ctx, email, s.deps.EmailVerification)
}

func (s Service) Login(ctx context.Context, email, password string) (*SessionResult, error) {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) (*SessionResult, error) {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, refreshToken string) {
	RunLogout(ctx, refreshToken, s.deps.Logout)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) error {
	return RunRequestPasswordReset(ctx, email, s.deps.PasswordReset)
}

func (s Service) ResetPassword(ctx context.Context, token, userID, newPassword string) error {
	return RunResetPassword(ctx, token, userID, newPassword, s.deps.PasswordReset)
}
