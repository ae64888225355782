package reelauth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/reelauth/internal/flows"
	"github.com/MrEthical07/reelauth/internal/ledger"
	"github.com/MrEthical07/reelauth/internal/limiters"
	"github.com/MrEthical07/reelauth/internal/rate"
	"github.com/MrEthical07/reelauth/internal/stores/grants"
	"github.com/MrEthical07/reelauth/internal/tokens"
	"github.com/MrEthical07/reelauth/jwt"
	"github.com/MrEthical07/reelauth/password"
	"github.com/redis/go-redis/v9"
)

// burnPassword is hashed once at build time so logins for unknown emails
// spend the same hashing work as real ones.
const burnPassword = "reelauth-timing-equalizer"

// Builder assembles an Engine. A Builder builds exactly once.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	store    UserStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for rate limiting and one-time grants.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the user persistence backend.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.store = store
	return b
}

// WithNotifier sets the mail notifier. The Engine closes it on Close when
// it has a Close method. Without one, mail links are only logged.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for grant expiry, account timestamps and the
// refresh ledger. JWT lifetimes always use the wall clock.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.store == nil {
		return nil, errors.New("user store is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	cfg := b.config
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		Keys:       jwt.KeySet{Current: cfg.JWT.CurrentKID, Keys: cfg.JWT.Keys},
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Leeway:     cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	passwords, err := password.NewManager(password.Config{
		Algorithm:  cfg.Password.Algorithm,
		BcryptCost: cfg.Password.BcryptCost,
	})
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}
	dummyHash, err := passwords.Hash(burnPassword)
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}

	loginLimiter, err := limiters.NewLoginLimiter(b.redis, limiters.LoginConfig{
		Email: rateConfig(cfg.RateLimit.Email),
		IP:    rateConfig(cfg.RateLimit.IP),
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	var verifyMail, resetMail *limiters.MailLimiter
	if cfg.RateLimit.Mail.Points > 0 {
		if verifyMail, err = limiters.NewMailLimiter(b.redis, "verify", rateConfig(cfg.RateLimit.Mail)); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		if resetMail, err = limiters.NewMailLimiter(b.redis, "reset", rateConfig(cfg.RateLimit.Mail)); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = logNotifier{logger: logger}
	}

	tokenHasher := tokens.NewHasher(cfg.Tokens.HashCost)
	now := b.now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		config:       cfg,
		logger:       logger,
		store:        b.store,
		notifier:     notifier,
		jwt:          jwtManager,
		passwords:    passwords,
		policy:       password.Policy{MinBytes: cfg.Password.MinBytes, MaxBytes: cfg.Password.MaxBytes},
		dummyHash:    dummyHash,
		tokens:       tokenHasher,
		ledger:       ledger.New(b.store, tokenHasher, cfg.Sessions.MaxPerUser, now),
		loginLimiter: loginLimiter,
		verifyMail:   verifyMail,
		resetMail:    resetMail,
		grants:       grants.NewStore(b.redis, cfg.Redis.GrantPrefix, now),
		metrics:      NewMetrics(cfg.Metrics),
		now:          now,
	}
	e.flow = flows.New(e.flowDeps())

	b.built = true
	return e, nil
}

func rateConfig(r RateLimitRule) rate.Config {
	return rate.Config{Points: r.Points, Duration: r.Duration, BlockDuration: r.BlockDuration}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.JWT.Keys != nil {
		out.JWT.Keys = make(map[string][]byte, len(cfg.JWT.Keys))
		for kid, secret := range cfg.JWT.Keys {
			out.JWT.Keys[kid] = append([]byte(nil), secret...)
		}
	}
	return out
}
