package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "$argon2id$"

// ErrMalformedHash is returned when an argon2id hash cannot be decoded.
var ErrMalformedHash = errors.New("malformed argon2id hash")

var b64 = base64.RawStdEncoding

// Argon2Config holds argon2id cost parameters. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the RFC 9106 second recommended parameter set.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < 8*1024:
		return errors.New("argon2 memory must be at least 8192 KiB")
	case c.Time < 1:
		return errors.New("argon2 time must be at least 1")
	case c.Parallelism < 1:
		return errors.New("argon2 parallelism must be at least 1")
	case c.SaltLength < 16:
		return errors.New("argon2 salt length must be at least 16")
	case c.KeyLength < 16:
		return errors.New("argon2 key length must be at least 16")
	}
	return nil
}

// Argon2 hashes passwords into PHC strings with argon2id. It is the
// alternative to Bcrypt selected by AlgorithmArgon2id.
type Argon2 struct {
	config Argon2Config
}

// NewArgon2 validates cfg and returns an argon2id hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// argon2Hash is the decoded form of
// $argon2id$v=19$m=<mem>,t=<time>,p=<par>$<salt>$<key>.
type argon2Hash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (h argon2Hash) String() string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, h.memory, h.time, h.parallelism,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func (h argon2Hash) derive(password string) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
}

func decodeArgon2(encoded string) (argon2Hash, error) {
	rest, ok := strings.CutPrefix(encoded, argon2Prefix)
	if !ok {
		return argon2Hash{}, ErrMalformedHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return argon2Hash{}, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return argon2Hash{}, ErrMalformedHash
	}
	if version != argon2.Version {
		return argon2Hash{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedHash, version)
	}

	var h argon2Hash
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.parallelism); err != nil {
		return argon2Hash{}, ErrMalformedHash
	}
	if h.memory == 0 || h.time == 0 || h.parallelism == 0 {
		return argon2Hash{}, ErrMalformedHash
	}

	var err error
	if h.salt, err = b64.DecodeString(fields[2]); err != nil || len(h.salt) < 16 {
		return argon2Hash{}, ErrMalformedHash
	}
	if h.key, err = b64.DecodeString(fields[3]); err != nil || len(h.key) == 0 {
		return argon2Hash{}, ErrMalformedHash
	}
	return h, nil
}

// Hash returns a PHC-encoded argon2id hash of password.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	h := argon2Hash{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        make([]byte, a.config.SaltLength),
		key:         make([]byte, a.config.KeyLength),
	}
	if _, err := rand.Read(h.salt); err != nil {
		return "", err
	}
	h.key = h.derive(password)
	return h.String(), nil
}

// Verify compares password against encoded in constant time.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	h, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(h.derive(password), h.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the current configuration.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	h, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}
	weaker := h.memory < a.config.Memory ||
		h.time < a.config.Time ||
		h.parallelism < a.config.Parallelism ||
		uint32(len(h.key)) != a.config.KeyLength
	return weaker, nil
}
