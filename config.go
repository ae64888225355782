package reelauth

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/MrEthical07/reelauth/password"
)

// Config holds every engine setting. Start from DefaultConfig and override
// fields; Build validates the result.
type Config struct {
	JWT               JWTConfig
	RateLimit         RateLimitConfig
	Password          PasswordConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	Sessions          SessionConfig
	Links             LinkConfig
	Tokens            TokenConfig
	Redis             RedisConfig
	Metrics           MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing. Keys maps a key id to its HMAC
// secret; CurrentKID signs new tokens and the rest only verify.
type JWTConfig struct {
	Issuer     string
	CurrentKID string
	Keys       map[string][]byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitRule is one fixed-window budget. A zero BlockDuration means the
// caller is only held back until the window ends.
type RateLimitRule struct {
	Points        int
	Duration      time.Duration
	BlockDuration time.Duration
}

// RateLimitConfig holds the login axes and the outbound mail throttle. Mail
// with zero Points is unthrottled.
type RateLimitConfig struct {
	Email RateLimitRule
	IP    RateLimitRule
	Mail  RateLimitRule
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hash algorithm and the length policy.
type PasswordConfig struct {
	Algorithm      password.Algorithm
	BcryptCost     int
	MinBytes       int
	MaxBytes       int
	UpgradeOnLogin bool
}

// EmailVerificationConfig bounds verification grant lifetime.
type EmailVerificationConfig struct {
	TTL time.Duration
}

// PasswordResetConfig bounds reset grant lifetime. RequireVerified limits
// resets to verified accounts.
type PasswordResetConfig struct {
	TTL             time.Duration
	RequireVerified bool
}

// SessionConfig caps concurrent refresh tokens per user.
type SessionConfig struct {
	MaxPerUser int
}

// LinkConfig holds the public base URLs used in mailed links. Verification
// links point at the server; reset links point at the client app.
type LinkConfig struct {
	ClientURL string
	ServerURL string
}

// TokenConfig sets the bcrypt cost for stored one-time token hashes.
type TokenConfig struct {
	HashCost int
}

// RedisConfig namespaces grant keys.
type RedisConfig struct {
	GrantPrefix string
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. JWT keys and links are left
// empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:     "reelauth",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			Leeway:     30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Email: RateLimitRule{Points: 5, Duration: 15 * time.Minute, BlockDuration: 15 * time.Minute},
			IP:    RateLimitRule{Points: 20, Duration: 15 * time.Minute, BlockDuration: 15 * time.Minute},
			Mail:  RateLimitRule{Points: 3, Duration: time.Hour},
		},
		Password: PasswordConfig{
			Algorithm:      password.AlgorithmBcrypt,
			BcryptCost:     12,
			MinBytes:       8,
			MaxBytes:       72,
			UpgradeOnLogin: true,
		},
		EmailVerification: EmailVerificationConfig{TTL: 24 * time.Hour},
		PasswordReset:     PasswordResetConfig{TTL: 30 * time.Minute},
		Sessions:          SessionConfig{MaxPerUser: 10},
		Tokens:            TokenConfig{HashCost: 10},
		Redis:             RedisConfig{GrantPrefix: "reelauth:grant"},
		Metrics:           MetricsConfig{Enabled: true, EnableLatencyHistograms: true},
	}
}

// Validate checks the config for settings the engine cannot run with.
func (c Config) Validate() error {
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("jwt ttls must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("jwt access ttl must be shorter than refresh ttl")
	}
	if len(c.JWT.Keys) == 0 {
		return errors.New("jwt keys are required")
	}
	if _, ok := c.JWT.Keys[c.JWT.CurrentKID]; !ok {
		return fmt.Errorf("jwt current kid %q has no key", c.JWT.CurrentKID)
	}

	if err := validateRule("email", c.RateLimit.Email, true); err != nil {
		return err
	}
	if err := validateRule("ip", c.RateLimit.IP, true); err != nil {
		return err
	}
	if err := validateRule("mail", c.RateLimit.Mail, false); err != nil {
		return err
	}

	if c.Password.MinBytes < 1 {
		return errors.New("password min bytes must be >= 1")
	}
	if c.Password.MaxBytes > 0 && c.Password.MaxBytes < c.Password.MinBytes {
		return errors.New("password max bytes must be >= min bytes")
	}
	if c.Password.Algorithm == password.AlgorithmBcrypt && (c.Password.MaxBytes == 0 || c.Password.MaxBytes > 72) {
		return errors.New("bcrypt passwords must be capped at 72 bytes")
	}

	if c.EmailVerification.TTL <= 0 {
		return errors.New("email verification ttl must be > 0")
	}
	if c.PasswordReset.TTL <= 0 {
		return errors.New("password reset ttl must be > 0")
	}
	if c.Sessions.MaxPerUser < 1 {
		return errors.New("sessions max per user must be >= 1")
	}

	if err := validateBaseURL("client", c.Links.ClientURL); err != nil {
		return err
	}
	if err := validateBaseURL("server", c.Links.ServerURL); err != nil {
		return err
	}
	return nil
}

func validateRule(name string, r RateLimitRule, required bool) error {
	if !required && r.Points == 0 {
		return nil
	}
	if r.Points <= 0 || r.Duration <= 0 {
		return fmt.Errorf("rate limit %s requires points and duration", name)
	}
	if r.BlockDuration < 0 {
		return fmt.Errorf("rate limit %s block duration must be >= 0", name)
	}
	return nil
}

func validateBaseURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s url is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s url %q is not absolute", name, raw)
	}
	return nil
}
