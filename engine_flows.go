package reelauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/reelauth/internal/flows"
	"github.com/MrEthical07/reelauth/internal/ledger"
	"github.com/MrEthical07/reelauth/internal/rate"
	"github.com/MrEthical07/reelauth/internal/stores/grants"
	"github.com/MrEthical07/reelauth/internal/tokens"
	"github.com/google/uuid"
)

func (e *Engine) flowDeps() flows.Deps {
	common := e.flowCommon()
	return flows.Deps{
		Account: flows.AccountDeps{
			Common:            common,
			CheckPassword:     e.policy.Check,
			FindUserByEmail:   e.findUserByEmail,
			HashPassword:      e.passwords.Hash,
			CreateUser:        e.createUser,
			IsDuplicate:       func(err error) bool { return errors.Is(err, ErrEmailTaken) },
			QueueVerification: e.queueVerification,
		},
		EmailVerification: flows.EmailVerificationDeps{
			Common:            common,
			ValidUserID:       ValidUserID,
			LoadGrant:         e.loadGrant(grants.KindEmailVerification),
			MatchToken:        e.tokens.Matches,
			MarkVerified:      e.store.MarkEmailVerified,
			FindUserByEmail:   e.findUserByEmail,
			AllowMail:         e.verifyMail.Allow,
			QueueVerification: e.queueVerification,
		},
		Login: flows.LoginDeps{
			Common:               common,
			UpgradeOnLogin:       e.config.Password.UpgradeOnLogin,
			ClientIP:             clientIPFromContext,
			ConsumeRate:          e.consumeLoginRate,
			IsRateLimited:        func(err error) bool { return errors.Is(err, ErrLoginRateLimited) },
			ResetRate:            e.loginLimiter.Reset,
			FindUserByEmail:      e.findUserByEmail,
			VerifyPassword:       e.passwords.Verify,
			BurnPasswordCheck:    e.burnPasswordCheck,
			PasswordNeedsUpgrade: e.passwords.NeedsUpgrade,
			HashPassword:         e.passwords.Hash,
			UpdatePasswordHash:   e.store.UpdatePasswordHash,
			IssueSession:         e.issueSession,
		},
		Refresh: flows.RefreshDeps{
			Common:             common,
			ParseRefresh:       e.parseRefresh,
			FindUserByID:       e.findUserByID,
			RotateSession:      e.rotateSession,
			IsRotationMismatch: func(err error) bool { return errors.Is(err, ledger.ErrNotFound) },
		},
		Logout: flows.LogoutDeps{
			Common:        common,
			ParseRefresh:  e.parseRefresh,
			FindUserByID:  e.findUserByID,
			RemoveSession: e.removeSession,
		},
		PasswordReset: flows.PasswordResetDeps{
			Common:          common,
			RequireVerified: e.config.PasswordReset.RequireVerified,
			FindUserByEmail: e.findUserByEmail,
			AllowMail:       e.resetMail.Allow,
			NewToken:        tokens.NewRawToken,
			HashToken:       e.tokens.Hash,
			IssueGrant:      e.issueResetGrant,
			SendReset:       e.sendReset,
			CheckPassword:   e.policy.Check,
			ValidUserID:     ValidUserID,
			LoadGrant:       e.loadGrant(grants.KindPasswordReset),
			MatchToken:      e.tokens.Matches,
			HashPassword:    e.passwords.Hash,
			ResetPassword:   e.store.ResetPassword,
			DeleteGrants: func(ctx context.Context, userID string) error {
				return e.grants.DeleteAll(ctx, grants.KindPasswordReset, userID)
			},
		},
	}
}

func (e *Engine) flowCommon() flows.Common {
	return flows.Common{
		Now:       e.now,
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		Warn:      e.logger.Warn,
		Metrics: flows.Metrics{
			LoginSuccess:         int(MetricLoginSuccess),
			LoginFailure:         int(MetricLoginFailure),
			LoginRateLimited:     int(MetricLoginRateLimited),
			RefreshSuccess:       int(MetricRefreshSuccess),
			RefreshFailure:       int(MetricRefreshFailure),
			RefreshReuseDetected: int(MetricRefreshReuseDetected),
			Logout:               int(MetricLogout),
			RegisterSuccess:      int(MetricRegisterSuccess),
			RegisterDuplicate:    int(MetricRegisterDuplicate),
			VerificationRequest:  int(MetricEmailVerificationRequest),
			VerificationSuccess:  int(MetricEmailVerificationSuccess),
			VerificationFailure:  int(MetricEmailVerificationFailure),
			PasswordResetRequest: int(MetricPasswordResetRequest),
			PasswordResetSuccess: int(MetricPasswordResetSuccess),
			PasswordResetFailure: int(MetricPasswordResetFailure),
			PasswordHashUpgraded: int(MetricPasswordHashUpgraded),
		},
		Errors: flows.Errors{
			EngineNotReady:      ErrEngineNotReady,
			InvalidCredentials:  ErrInvalidCredentials,
			EmailNotVerified:    ErrEmailNotVerified,
			AccountExists:       ErrAccountExists,
			PasswordPolicy:      ErrPasswordPolicy,
			RefreshMissing:      ErrRefreshMissing,
			RefreshInvalid:      ErrRefreshInvalid,
			InvalidUserID:       ErrInvalidUserID,
			VerificationInvalid: ErrVerificationInvalid,
			ResetInvalid:        ErrResetInvalid,
			MissingField:        func(field string) error { return &FieldError{Field: field} },
		},
	}
}

func (e *Engine) createUser(ctx context.Context, u flows.UserRecord) (string, error) {
	return e.store.CreateUser(ctx, &User{
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		CreatedAt:    e.now().UTC(),
	})
}

func (e *Engine) consumeLoginRate(ctx context.Context, email, ip string) error {
	err := e.loginLimiter.Consume(ctx, email, ip)
	if err == nil {
		return nil
	}
	var limited *rate.LimitError
	if errors.As(err, &limited) {
		return &RateLimitError{RetryAfter: limited.RetryAfter}
	}
	return fmt.Errorf("login rate limiter: %w", err)
}

func (e *Engine) burnPasswordCheck(pw string) {
	_, _ = e.passwords.Verify(pw, e.dummyHash)
}

// loadGrant adapts the grant store to the flow model. Consume reports false
// when another request consumed or replaced the grant first.
func (e *Engine) loadGrant(kind grants.Kind) func(context.Context, string) (*flows.GrantRecord, error) {
	return func(ctx context.Context, userID string) (*flows.GrantRecord, error) {
		g, err := e.grants.Get(ctx, kind, userID)
		if err != nil {
			if errors.Is(err, grants.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &flows.GrantRecord{
			Hash:      g.Hash,
			ExpiresAt: g.ExpiresAt,
			Consume: func(ctx context.Context) (bool, error) {
				if err := e.grants.Consume(ctx, kind, g); err != nil {
					if errors.Is(err, grants.ErrNotFound) {
						return false, nil
					}
					return false, err
				}
				return true, nil
			},
		}, nil
	}
}

func (e *Engine) parseRefresh(token string) (flows.RefreshClaims, error) {
	claims, err := e.jwt.ParseRefresh(token)
	if err != nil {
		return flows.RefreshClaims{}, err
	}
	return flows.RefreshClaims{UserID: claims.Subject, JTI: claims.ID}, nil
}

func (e *Engine) issueSession(ctx context.Context, u flows.UserRecord) (string, string, error) {
	jti := uuid.NewString()
	access, err := e.jwt.SignAccess(u.ID, u.Email)
	if err != nil {
		return "", "", err
	}
	refresh, err := e.jwt.SignRefresh(u.ID, u.Email, jti)
	if err != nil {
		return "", "", err
	}
	if err := e.ledger.Store(ctx, u.ID, jti, refresh); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (e *Engine) rotateSession(ctx context.Context, u flows.UserRecord, oldToken, oldJTI string) (string, string, error) {
	jti := uuid.NewString()
	access, err := e.jwt.SignAccess(u.ID, u.Email)
	if err != nil {
		return "", "", err
	}
	refresh, err := e.jwt.SignRefresh(u.ID, u.Email, jti)
	if err != nil {
		return "", "", err
	}
	if err := e.ledger.Rotate(ctx, u.ID, u.Sessions, oldJTI, oldToken, jti, refresh); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (e *Engine) removeSession(ctx context.Context, u flows.UserRecord, token, jti string) (bool, error) {
	return e.ledger.Remove(ctx, u.ID, u.Sessions, jti, token)
}
