// Package tokens generates and hashes one-time secrets: verification and
// reset tokens, and the refresh JWTs kept in the session ledger.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

const rawTokenSize = 32

// Hasher hashes raw tokens with bcrypt over their SHA-256 digest. The digest
// keeps long inputs such as signed JWTs inside bcrypt's 72-byte limit.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher; a zero cost selects bcrypt.DefaultCost.
func NewHasher(cost int) Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

// NewRawToken returns 32 random bytes hex encoded.
func NewRawToken() (string, error) {
	var b [rawTokenSize]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// Hash returns a salted hash of raw.
func (h Hasher) Hash(raw string) (string, error) {
	out, err := bcrypt.GenerateFromPassword(digest(raw), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Matches reports whether raw hashes to hash. Malformed hashes never match.
func (h Hasher) Matches(raw, hash string) bool {
	if raw == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), digest(raw)) == nil
}

func digest(raw string) []byte {
	sum := sha256.Sum256([]byte(raw))
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum[:])
	return out
}
