package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/reelauth/internal/ledger"
)

// UserRecord is the flow-local user model.
type UserRecord struct {
	ID            string
	Email         string
	DisplayName   string
	PasswordHash  string
	EmailVerified bool
	Sessions      []ledger.Entry
}

// GrantRecord is a loaded one-time grant. Consume deletes it only if it is
// still the current grant and reports whether it did.
type GrantRecord struct {
	Hash      string
	ExpiresAt time.Time
	Consume   func(context.Context) (bool, error)
}

// Errors carries host-level sentinel errors.
type Errors struct {
	EngineNotReady      error
	InvalidCredentials  error
	EmailNotVerified    error
	AccountExists       error
	PasswordPolicy      error
	RefreshMissing      error
	RefreshInvalid      error
	InvalidUserID       error
	VerificationInvalid error
	ResetInvalid        error
	MissingField        func(field string) error
}

// Metrics carries metric IDs incremented by flows.
type Metrics struct {
	LoginSuccess         int
	LoginFailure         int
	LoginRateLimited     int
	RefreshSuccess       int
	RefreshFailure       int
	RefreshReuseDetected int
	Logout               int
	RegisterSuccess      int
	RegisterDuplicate    int
	VerificationRequest  int
	VerificationSuccess  int
	VerificationFailure  int
	PasswordResetRequest int
	PasswordResetSuccess int
	PasswordResetFailure int
	PasswordHashUpgraded int
}

// Common holds dependencies every flow shares.
type Common struct {
	Now       func() time.Time
	MetricInc func(int)
	Warn      func(msg string, args ...any)
	Metrics   Metrics
	Errors    Errors
}

func (c *Common) defaults() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.MetricInc == nil {
		c.MetricInc = func(int) {}
	}
	if c.Warn == nil {
		c.Warn = func(string, ...any) {}
	}
}

func (c Common) missing(field string) error {
	if c.Errors.MissingField == nil {
		return c.Errors.EngineNotReady
	}
	return c.Errors.MissingField(field)
}

// Deps groups flow dependency sets. The root engine builds this once.
type Deps struct {
	Account           AccountDeps
	EmailVerification EmailVerificationDeps
	Login             LoginDeps
	Refresh           RefreshDeps
	Logout            LogoutDeps
	PasswordReset     PasswordResetDeps
}
