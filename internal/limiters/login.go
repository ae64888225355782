package limiters

import (
	"context"
	"errors"

	"github.com/MrEthical07/reelauth/internal/rate"
	"github.com/redis/go-redis/v9"
)

// LoginConfig holds the two axis budgets.
type LoginConfig struct {
	Email rate.Config
	IP    rate.Config
}

// LoginLimiter consumes one point on both the email and the IP axis per
// login attempt.
type LoginLimiter struct {
	email *rate.Limiter
	ip    *rate.Limiter
}

// NewLoginLimiter builds both axis limiters.
func NewLoginLimiter(redisClient redis.UniversalClient, cfg LoginConfig) (*LoginLimiter, error) {
	email, err := rate.New(redisClient, "login_email", cfg.Email)
	if err != nil {
		return nil, err
	}
	ip, err := rate.New(redisClient, "login_ip", cfg.IP)
	if err != nil {
		return nil, err
	}
	return &LoginLimiter{email: email, ip: ip}, nil
}

// Consume spends a point on each axis. Both axes are always charged; when
// either is exhausted the returned *rate.LimitError carries the longer wait.
// An empty ip skips the IP axis.
func (l *LoginLimiter) Consume(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}

	var limited *rate.LimitError
	record := func(err error) error {
		var le *rate.LimitError
		if errors.As(err, &le) {
			if limited == nil || le.RetryAfter > limited.RetryAfter {
				limited = le
			}
			return nil
		}
		return err
	}

	if ip != "" {
		if _, err := l.ip.Consume(ctx, ip); record(err) != nil {
			return err
		}
	}
	if _, err := l.email.Consume(ctx, email); record(err) != nil {
		return err
	}

	if limited != nil {
		return limited
	}
	return nil
}

// Reset clears both axes after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	var errs []error
	if ip != "" {
		errs = append(errs, l.ip.Reset(ctx, ip))
	}
	errs = append(errs, l.email.Reset(ctx, email))
	return errors.Join(errs...)
}
