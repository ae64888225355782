package password

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm selects the hash format for new passwords.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

var (
	// ErrTooShort is returned by Policy.Check for short passwords.
	ErrTooShort = errors.New("password too short")
	// ErrTooLong is returned by Policy.Check for passwords bcrypt would truncate.
	ErrTooLong = errors.New("password too long")
	// ErrUnknownHash is returned when a stored hash has no recognised prefix.
	ErrUnknownHash = errors.New("unknown password hash format")
)

// Policy bounds password length in bytes.
type Policy struct {
	MinBytes int
	MaxBytes int
}

// DefaultPolicy returns an 8..72 byte policy.
func DefaultPolicy() Policy {
	return Policy{MinBytes: 8, MaxBytes: 72}
}

// Check validates password length.
func (p Policy) Check(password string) error {
	if len(password) < p.MinBytes {
		return fmt.Errorf("%w: minimum %d bytes", ErrTooShort, p.MinBytes)
	}
	if p.MaxBytes > 0 && len(password) > p.MaxBytes {
		return fmt.Errorf("%w: maximum %d bytes", ErrTooLong, p.MaxBytes)
	}
	return nil
}

// Config configures a Manager.
type Config struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     Argon2Config
}

// Manager hashes with the configured algorithm and verifies either format.
//
// Manager is safe for concurrent use.
type Manager struct {
	algorithm Algorithm
	bcrypt    *Bcrypt
	argon2    *Argon2
}

// NewManager builds both hashers and validates their parameters.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmBcrypt
	}
	if cfg.Algorithm != AlgorithmBcrypt && cfg.Algorithm != AlgorithmArgon2id {
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}
	if cfg.Argon2 == (Argon2Config{}) {
		cfg.Argon2 = DefaultArgon2Config()
	}

	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	return &Manager{algorithm: cfg.Algorithm, bcrypt: b, argon2: a}, nil
}

// Hash hashes password with the configured algorithm.
func (m *Manager) Hash(password string) (string, error) {
	if m.algorithm == AlgorithmArgon2id {
		return m.argon2.Hash(password)
	}
	return m.bcrypt.Hash(password)
}

// Verify checks password against a bcrypt or argon2id hash.
func (m *Manager) Verify(password, hash string) (bool, error) {
	switch {
	case isBcryptHash(hash):
		return m.bcrypt.Verify(password, hash)
	case strings.HasPrefix(hash, argon2Prefix):
		return m.argon2.Verify(password, hash)
	default:
		return false, ErrUnknownHash
	}
}

// NeedsUpgrade reports whether hash should be re-hashed: either it uses a
// different algorithm than the configured one or weaker parameters.
func (m *Manager) NeedsUpgrade(hash string) (bool, error) {
	switch {
	case isBcryptHash(hash):
		if m.algorithm != AlgorithmBcrypt {
			return true, nil
		}
		return m.bcrypt.NeedsUpgrade(hash)
	case strings.HasPrefix(hash, argon2Prefix):
		if m.algorithm != AlgorithmArgon2id {
			return true, nil
		}
		return m.argon2.NeedsUpgrade(hash)
	default:
		return false, ErrUnknownHash
	}
}
