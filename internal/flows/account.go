package flows

import (
	"context"
	"fmt"
	"strings"
)

// RegisterRequest is the flow-local registration input. Email is expected
// to be normalized already.
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// RegisterResult identifies the created account.
type RegisterResult struct {
	UserID      string
	Email       string
	DisplayName string
}

// AccountDeps captures registration dependencies.
type AccountDeps struct {
	Common

	CheckPassword     func(string) error
	FindUserByEmail   func(context.Context, string) (*UserRecord, error)
	HashPassword      func(string) (string, error)
	CreateUser        func(context.Context, UserRecord) (string, error)
	IsDuplicate       func(error) bool
	QueueVerification func(context.Context, UserRecord) error
}

// RunRegister creates an unverified account and queues the verification
// mail. Mail failures are logged, never returned.
func RunRegister(ctx context.Context, req RegisterRequest, deps AccountDeps) (*RegisterResult, error) {
	deps.defaults()
	if deps.FindUserByEmail == nil || deps.HashPassword == nil || deps.CreateUser == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if req.Email == "" {
		return nil, deps.missing("email")
	}
	if req.Password == "" {
		return nil, deps.missing("password")
	}
	if deps.CheckPassword != nil {
		if err := deps.CheckPassword(req.Password); err != nil {
			return nil, fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err)
		}
	}

	existing, err := deps.FindUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		deps.MetricInc(deps.Metrics.RegisterDuplicate)
		return nil, deps.Errors.AccountExists
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := UserRecord{
		Email:        req.Email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: hash,
	}
	if user.DisplayName == "" {
		user.DisplayName = localPart(req.Email)
	}

	id, err := deps.CreateUser(ctx, user)
	if err != nil {
		if deps.IsDuplicate != nil && deps.IsDuplicate(err) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			return nil, deps.Errors.AccountExists
		}
		return nil, err
	}
	user.ID = id

	if deps.QueueVerification != nil {
		deps.MetricInc(deps.Metrics.VerificationRequest)
		if err := deps.QueueVerification(ctx, user); err != nil {
			deps.Warn("flows: queue verification after register failed", "user_id", id, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	return &RegisterResult{UserID: id, Email: user.Email, DisplayName: user.DisplayName}, nil
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
