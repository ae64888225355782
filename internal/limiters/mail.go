package limiters

import (
	"context"

	"github.com/MrEthical07/reelauth/internal/rate"
	"github.com/redis/go-redis/v9"
)

// MailLimiter throttles outbound mail requests per address so resend and
// forgot-password cannot be used to flood an inbox.
type MailLimiter struct {
	limiter *rate.Limiter
}

// NewMailLimiter builds a limiter for one mail kind.
func NewMailLimiter(redisClient redis.UniversalClient, kind string, cfg rate.Config) (*MailLimiter, error) {
	l, err := rate.New(redisClient, "mail_"+kind, cfg)
	if err != nil {
		return nil, err
	}
	return &MailLimiter{limiter: l}, nil
}

// Allow spends one point for address and returns rate.ErrRateLimited (as a
// *rate.LimitError) when the budget is spent.
func (l *MailLimiter) Allow(ctx context.Context, address string) error {
	if l == nil {
		return nil
	}
	_, err := l.limiter.Consume(ctx, address)
	return err
}
