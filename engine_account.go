package reelauth

import (
	"context"

	"github.com/MrEthical07/reelauth/internal/flows"
)

// Register creates an unverified account and queues a verification mail.
// A mail failure does not fail registration.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Register(ctx, flows.RegisterRequest{
		Email:       NormalizeEmail(req.Email),
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return nil, err
	}
	return &RegisterResult{UserID: res.UserID, Email: res.Email, DisplayName: res.DisplayName}, nil
}
