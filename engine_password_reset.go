package reelauth

import (
	"context"

	"github.com/MrEthical07/reelauth/internal/flows"
	"github.com/MrEthical07/reelauth/internal/stores/grants"
)

// ForgotPassword mails a reset link when the address belongs to an account.
// The result is the same whether or not it does.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flow.RequestPasswordReset(ctx, NormalizeEmail(email))
}

// ResetPassword consumes the reset grant, stores the new password and
// revokes every session of the user.
func (e *Engine) ResetPassword(ctx context.Context, token, userID, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flow.ResetPassword(ctx, token, userID, newPassword)
}

func (e *Engine) issueResetGrant(ctx context.Context, userID, hash string) error {
	expiresAt := e.now().Add(e.config.PasswordReset.TTL)
	return e.grants.Issue(ctx, grants.KindPasswordReset, userID, hash, expiresAt)
}

func (e *Engine) sendReset(ctx context.Context, u flows.UserRecord, raw string) error {
	link := buildLink(e.config.Links.ClientURL, "/reset-password", raw, u.ID)
	return e.notifier.NotifyPasswordReset(ctx, u.Email, u.DisplayName, link)
}
