package reelauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/reelauth/internal/flows"
	"github.com/MrEthical07/reelauth/internal/ledger"
	"github.com/MrEthical07/reelauth/internal/limiters"
	"github.com/MrEthical07/reelauth/internal/stores/grants"
	"github.com/MrEthical07/reelauth/internal/tokens"
	"github.com/MrEthical07/reelauth/jwt"
	"github.com/MrEthical07/reelauth/password"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Engine runs every authentication flow. Build it with [New].
//
// Engine is safe for concurrent use.
type Engine struct {
	config   Config
	logger   *slog.Logger
	store    UserStore
	notifier Notifier

	jwt       *jwt.Manager
	passwords *password.Manager
	policy    password.Policy
	dummyHash string
	tokens    tokens.Hasher
	ledger    *ledger.Ledger

	loginLimiter *limiters.LoginLimiter
	verifyMail   *limiters.MailLimiter
	resetMail    *limiters.MailLimiter
	grants       *grants.Store

	metrics *Metrics
	flow    flows.Service
	now     func() time.Time
}

// Close releases the notifier when it owns background workers.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if c, ok := e.notifier.(interface{ Close() }); ok {
		c.Close()
	}
}

// Metrics returns the live counter set.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot copies the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

// NormalizeEmail trims and lowercases an address. Every lookup and limiter
// key uses the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidUserID reports whether id is a 24-hex ObjectID string.
func ValidUserID(id string) bool {
	_, err := bson.ObjectIDFromHex(id)
	return err == nil
}

func toFlowUser(u *User) *flows.UserRecord {
	if u == nil {
		return nil
	}
	return &flows.UserRecord{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		PasswordHash:  u.PasswordHash,
		EmailVerified: u.EmailVerified,
		Sessions:      u.RefreshTokens,
	}
}

func publicFromFlow(u flows.UserRecord) PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

func (e *Engine) findUserByEmail(ctx context.Context, email string) (*flows.UserRecord, error) {
	u, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toFlowUser(u), nil
}

func (e *Engine) findUserByID(ctx context.Context, id string) (*flows.UserRecord, error) {
	u, err := e.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toFlowUser(u), nil
}

type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) NotifyVerification(_ context.Context, to, _, link string) error {
	n.logger.Info("verification mail not sent: no notifier configured", "to", to, "link", link)
	return nil
}

func (n logNotifier) NotifyPasswordReset(_ context.Context, to, _, link string) error {
	n.logger.Info("password reset mail not sent: no notifier configured", "to", to, "link", link)
	return nil
}
