package flows

import (
	"context"
	"errors"
	"time"
)

var errGrantRejected = errors.New("grant rejected")

// consumeGrant loads, checks and consumes the user's grant. Missing,
// expired, mismatched and lost-race grants all yield errGrantRejected;
// other errors are infrastructure failures.
func consumeGrant(
	ctx context.Context,
	userID, token string,
	load func(context.Context, string) (*GrantRecord, error),
	match func(raw, hash string) bool,
	now func() time.Time,
) error {
	grant, err := load(ctx, userID)
	if err != nil {
		return err
	}
	if grant == nil {
		return errGrantRejected
	}
	if !now().Before(grant.ExpiresAt) {
		return errGrantRejected
	}
	if !match(token, grant.Hash) {
		return errGrantRejected
	}
	if grant.Consume != nil {
		consumed, err := grant.Consume(ctx)
		if err != nil {
			return err
		}
		if !consumed {
			return errGrantRejected
		}
	}
	return nil
}
