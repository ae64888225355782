package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrSigningKeyMissing is returned when the current kid has no secret.
	ErrSigningKeyMissing = errors.New("signing key missing")
	// ErrTokenInvalid wraps every verification failure.
	ErrTokenInvalid = errors.New("token invalid")
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Config holds signer settings.
type Config struct {
	Keys       KeySet
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
	Now        func() time.Time
}

// Manager issues and verifies HS256 tokens against a KeySet.
//
// Manager is safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the claim set shared by access and refresh tokens. Subject holds
// the user id; refresh tokens additionally carry a jti in ID.
type Claims struct {
	Email string `json:"email"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if err := cfg.Keys.Validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{config: cfg}, nil
}

// SignAccess issues a short-lived access token for the user.
func (j *Manager) SignAccess(sub, email string) (string, error) {
	return j.sign(sub, email, "", typeAccess, j.config.AccessTTL)
}

// SignRefresh issues a refresh token identified by jti.
func (j *Manager) SignRefresh(sub, email, jti string) (string, error) {
	if jti == "" {
		return "", errors.New("refresh token requires jti")
	}
	return j.sign(sub, email, jti, typeRefresh, j.config.RefreshTTL)
}

// ParseAccess verifies an access token. Refresh tokens are rejected.
func (j *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return j.parse(tokenStr, typeAccess)
}

// ParseRefresh verifies a refresh token and requires a jti.
func (j *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	claims, err := j.parse(tokenStr, typeRefresh)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrTokenInvalid)
	}
	return claims, nil
}

// RefreshTTL returns the configured refresh lifetime.
func (j *Manager) RefreshTTL() time.Duration {
	return j.config.RefreshTTL
}

func (j *Manager) sign(sub, email, jti, typ string, ttl time.Duration) (string, error) {
	kid := j.config.Keys.Current
	secret, ok := j.config.Keys.secret(kid)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrSigningKeyMissing, kid)
	}

	now := j.config.Now()
	claims := Claims{
		Email: email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ID:        jti,
			Issuer:    j.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = kid

	return token.SignedString(secret)
}

func (j *Manager) parse(tokenStr, typ string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		secret, ok := j.config.Keys.secret(kid)
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrTokenInvalid, claims.Type)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}
