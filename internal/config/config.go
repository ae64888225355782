// Package config loads server configuration from a YAML file and
// REELAUTH_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/MrEthical07/reelauth"
	"github.com/MrEthical07/reelauth/middleware"
	"github.com/MrEthical07/reelauth/password"
	"github.com/spf13/viper"
)

// Config holds all configuration for the server.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Mail      MailConfig      `mapstructure:"mail"`
	URLs      URLConfig       `mapstructure:"urls"`
	Password  PasswordConfig  `mapstructure:"password"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Reset     ResetConfig     `mapstructure:"reset"`
	Feed      FeedConfig      `mapstructure:"feed"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Environment  string        `mapstructure:"environment"` // development, production
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	LogLevel     string        `mapstructure:"log_level"`
	// TrustedProxies lists proxy IPs or CIDRs, comma separated, whose
	// forwarding headers name the client. Empty trusts none.
	TrustedProxies string `mapstructure:"trusted_proxies"`
}

// Production reports whether the server runs in production mode.
func (s ServerConfig) Production() bool {
	return strings.EqualFold(s.Environment, "production")
}

// Proxies parses TrustedProxies.
func (s ServerConfig) Proxies() ([]netip.Prefix, error) {
	return middleware.ParseTrustedProxies(s.TrustedProxies)
}

// StoreConfig selects the user store: "mongo" or "memory".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig holds Redis settings. Embedded starts an in-process
// miniredis instead of dialing Addr.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Embedded bool   `mapstructure:"embedded"`
}

// JWTConfig holds signing settings. Keys is "kid:secret" pairs separated
// by commas.
type JWTConfig struct {
	Issuer     string        `mapstructure:"issuer"`
	CurrentKID string        `mapstructure:"current_kid"`
	Keys       string        `mapstructure:"keys"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

// RuleConfig is one limiter budget.
type RuleConfig struct {
	Points        int           `mapstructure:"points"`
	Duration      time.Duration `mapstructure:"duration"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
}

// RateLimitConfig holds the login axes and the mail throttle.
type RateLimitConfig struct {
	Email RuleConfig `mapstructure:"email"`
	IP    RuleConfig `mapstructure:"ip"`
	Mail  RuleConfig `mapstructure:"mail"`
}

// MailConfig holds SMTP relay settings. An empty Host logs mail instead of
// sending it.
type MailConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	From       string        `mapstructure:"from"`
	Timeout    time.Duration `mapstructure:"timeout"`
	BufferSize int           `mapstructure:"buffer_size"`
}

// URLConfig holds public origins used in mailed links and CORS.
type URLConfig struct {
	Client string `mapstructure:"client"`
	Server string `mapstructure:"server"`
}

// PasswordConfig holds hashing settings.
type PasswordConfig struct {
	Algorithm      string `mapstructure:"algorithm"`
	BcryptCost     int    `mapstructure:"bcrypt_cost"`
	UpgradeOnLogin bool   `mapstructure:"upgrade_on_login"`
}

// SessionsConfig caps refresh tokens per user.
type SessionsConfig struct {
	MaxPerUser int `mapstructure:"max_per_user"`
}

// ResetConfig holds password reset policy.
type ResetConfig struct {
	RequireVerified bool `mapstructure:"require_verified"`
}

// FeedConfig bounds the recommendation candidate pool.
type FeedConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

// Load reads configFile (optional; searched as config.yaml in ".",
// "./config" and "/etc/reelauth" when empty) and the environment.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/reelauth")
	}

	v.SetEnvPrefix("REELAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.trusted_proxies", "")

	v.SetDefault("store.driver", "mongo")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "reel")
	v.SetDefault("mongo.connect_timeout", "10s")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.embedded", false)

	v.SetDefault("jwt.issuer", "reelauth")
	v.SetDefault("jwt.current_kid", "")
	v.SetDefault("jwt.keys", "")
	v.SetDefault("jwt.access_ttl", "15m")
	v.SetDefault("jwt.refresh_ttl", "720h")

	v.SetDefault("rate_limit.email.points", 5)
	v.SetDefault("rate_limit.email.duration", "15m")
	v.SetDefault("rate_limit.email.block_duration", "15m")
	v.SetDefault("rate_limit.ip.points", 20)
	v.SetDefault("rate_limit.ip.duration", "15m")
	v.SetDefault("rate_limit.ip.block_duration", "15m")
	v.SetDefault("rate_limit.mail.points", 3)
	v.SetDefault("rate_limit.mail.duration", "1h")
	v.SetDefault("rate_limit.mail.block_duration", "0s")

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "no-reply@localhost")
	v.SetDefault("mail.timeout", "10s")
	v.SetDefault("mail.buffer_size", 64)

	v.SetDefault("urls.client", "http://localhost:5173")
	v.SetDefault("urls.server", "http://localhost:8080")

	v.SetDefault("password.algorithm", string(password.AlgorithmBcrypt))
	v.SetDefault("password.bcrypt_cost", 12)
	v.SetDefault("password.upgrade_on_login", true)

	v.SetDefault("sessions.max_per_user", 10)
	v.SetDefault("reset.require_verified", false)
	v.SetDefault("feed.pool_size", 500)
}

// Validate checks settings that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("store.driver must be mongo or memory, got %q", c.Store.Driver)
	}
	if c.Store.Driver == "mongo" && (c.Mongo.URI == "" || c.Mongo.Database == "") {
		return errors.New("mongo.uri and mongo.database are required")
	}
	if _, err := c.Server.Proxies(); err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}
	if !c.Redis.Embedded && c.Redis.Addr == "" {
		return errors.New("redis.addr is required unless redis.embedded is set")
	}
	keys, err := ParseKeys(c.JWT.Keys)
	if err != nil {
		return err
	}
	if _, ok := keys[c.JWT.CurrentKID]; !ok {
		return fmt.Errorf("jwt.current_kid %q not found in jwt.keys", c.JWT.CurrentKID)
	}
	return nil
}

// ParseKeys parses "kid:secret,kid2:secret2".
func ParseKeys(raw string) (map[string][]byte, error) {
	keys := make(map[string][]byte)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kid, secret, ok := strings.Cut(pair, ":")
		kid = strings.TrimSpace(kid)
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("jwt.keys entry %q must be kid:secret", pair)
		}
		if _, dup := keys[kid]; dup {
			return nil, fmt.Errorf("jwt.keys has duplicate kid %q", kid)
		}
		keys[kid] = []byte(secret)
	}
	if len(keys) == 0 {
		return nil, errors.New("jwt.keys is required")
	}
	return keys, nil
}

// Engine converts c into an engine configuration.
func (c *Config) Engine() (reelauth.Config, error) {
	keys, err := ParseKeys(c.JWT.Keys)
	if err != nil {
		return reelauth.Config{}, err
	}

	cfg := reelauth.DefaultConfig()
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.CurrentKID = c.JWT.CurrentKID
	cfg.JWT.Keys = keys
	cfg.JWT.AccessTTL = c.JWT.AccessTTL
	cfg.JWT.RefreshTTL = c.JWT.RefreshTTL
	cfg.RateLimit = reelauth.RateLimitConfig{
		Email: rule(c.RateLimit.Email),
		IP:    rule(c.RateLimit.IP),
		Mail:  rule(c.RateLimit.Mail),
	}
	cfg.Password.Algorithm = password.Algorithm(c.Password.Algorithm)
	cfg.Password.BcryptCost = c.Password.BcryptCost
	cfg.Password.UpgradeOnLogin = c.Password.UpgradeOnLogin
	cfg.Sessions.MaxPerUser = c.Sessions.MaxPerUser
	cfg.PasswordReset.RequireVerified = c.Reset.RequireVerified
	cfg.Links = reelauth.LinkConfig{ClientURL: c.URLs.Client, ServerURL: c.URLs.Server}

	if err := cfg.Validate(); err != nil {
		return reelauth.Config{}, err
	}
	return cfg, nil
}

func rule(r RuleConfig) reelauth.RateLimitRule {
	return reelauth.RateLimitRule{Points: r.Points, Duration: r.Duration, BlockDuration: r.BlockDuration}
}
