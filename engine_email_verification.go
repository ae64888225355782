package reelauth

import (
	"context"
	"net/url"

	"github.com/MrEthical07/reelauth/internal/flows"
	"github.com/MrEthical07/reelauth/internal/stores/grants"
	"github.com/MrEthical07/reelauth/internal/tokens"
)

// VerifyEmail consumes the verification grant for userID and marks the
// account verified. A link works once.
func (e *Engine) VerifyEmail(ctx context.Context, token, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flow.VerifyEmail(ctx, token, userID)
}

// ResendVerification mails a fresh link to an unverified account. It
// returns nil for unknown and already-verified addresses.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flow.ResendVerification(ctx, NormalizeEmail(email))
}

// queueVerification replaces the user's verification grant and hands the
// link to the notifier.
func (e *Engine) queueVerification(ctx context.Context, u flows.UserRecord) error {
	raw, err := tokens.NewRawToken()
	if err != nil {
		return err
	}
	hash, err := e.tokens.Hash(raw)
	if err != nil {
		return err
	}
	expiresAt := e.now().Add(e.config.EmailVerification.TTL)
	if err := e.grants.Issue(ctx, grants.KindEmailVerification, u.ID, hash, expiresAt); err != nil {
		return err
	}
	link := buildLink(e.config.Links.ServerURL, "/auth/verify-email", raw, u.ID)
	return e.notifier.NotifyVerification(ctx, u.Email, u.DisplayName, link)
}

// buildLink appends path and the token/u query to base.
func buildLink(base, path, token, userID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + path
	}
	u.Path = joinPath(u.Path, path)
	u.RawQuery = url.Values{"token": {token}, "u": {userID}}.Encode()
	return u.String()
}

func joinPath(basePath, path string) string {
	for len(basePath) > 0 && basePath[len(basePath)-1] == '/' {
		basePath = basePath[:len(basePath)-1]
	}
	return basePath + path
}
