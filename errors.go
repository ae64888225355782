package reelauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/reelauth/internal/rate"
)

var (
	// ErrEngineNotReady is returned when the engine was not built through Builder.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrMissingField is matched by every *FieldError.
	ErrMissingField = errors.New("missing required field")
	// ErrPasswordPolicy is returned for passwords outside the length policy.
	ErrPasswordPolicy = errors.New("password does not meet policy")
	// ErrAccountExists is returned by Register for a taken email.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified is returned by Login for correct credentials on an unverified account.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrLoginRateLimited is matched by *RateLimitError.
	ErrLoginRateLimited = errors.New("too many login attempts")
	// ErrRefreshMissing is returned by Refresh when no token was presented.
	ErrRefreshMissing = errors.New("missing refresh token")
	// ErrRefreshInvalid covers every refresh rejection.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrInvalidUserID is returned for ids that are not 24-hex ObjectIDs.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrVerificationInvalid covers missing, expired, mismatched and used verification links.
	ErrVerificationInvalid = errors.New("verification link is invalid or has expired")
	// ErrResetInvalid covers missing, expired, mismatched and used reset links.
	ErrResetInvalid = errors.New("reset link is invalid or has expired")
	// ErrUnauthorized is returned by ValidateAccess.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUserNotFound is returned by UserStore lookups.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned by UserStore.CreateUser on a unique index violation.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidList is returned for unknown list names.
	ErrInvalidList = errors.New("invalid list")
	// ErrInvalidReaction is returned for unknown reactions.
	ErrInvalidReaction = errors.New("invalid reaction")
	// ErrInvalidMovieID is returned for non-positive movie ids.
	ErrInvalidMovieID = errors.New("invalid movie id")
)

// FieldError reports a missing request field.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return e.Field + " is required"
}

// Is makes errors.Is(err, ErrMissingField) hold.
func (e *FieldError) Is(target error) bool {
	return target == ErrMissingField
}

// RateLimitError is returned by Login when either limiter axis is exhausted.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return ErrLoginRateLimited.Error()
}

// Is makes errors.Is(err, ErrLoginRateLimited) hold.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrLoginRateLimited
}

// RetryAfterSeconds is RetryAfter rounded up to whole seconds, at least one.
func (e *RateLimitError) RetryAfterSeconds() int {
	return rate.RetryAfterSeconds(e.RetryAfter)
}
