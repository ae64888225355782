// Package ledger keeps the per-user list of active refresh tokens. Raw
// tokens are never stored; each entry holds a hash plus the token's jti so
// lookups can try the hinted entry before scanning the rest.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/reelauth/internal/tokens"
)

// DefaultMaxEntries caps concurrent sessions per user.
const DefaultMaxEntries = 10

// ErrNotFound is returned when no entry matches the presented token, or
// the matching entry disappeared before it could be replaced.
var ErrNotFound = errors.New("refresh token not in ledger")

// Entry is one active refresh token.
type Entry struct {
	JTI       string    `bson:"jti" json:"jti"`
	Hash      string    `bson:"hash" json:"-"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Backend persists entries on the user record. ReplaceRefreshToken must be a
// single conditional update that reports false when oldJTI is gone.
type Backend interface {
	PushRefreshToken(ctx context.Context, userID string, entry Entry, max int) error
	PullRefreshToken(ctx context.Context, userID, jti string) error
	ReplaceRefreshToken(ctx context.Context, userID, oldJTI string, entry Entry) (bool, error)
	ClearRefreshTokens(ctx context.Context, userID string) error
}

// Ledger hashes and matches refresh tokens against a Backend.
type Ledger struct {
	backend Backend
	hasher  tokens.Hasher
	max     int
	now     func() time.Time
}

// New returns a Ledger. max <= 0 selects DefaultMaxEntries.
func New(backend Backend, hasher tokens.Hasher, max int, now func() time.Time) *Ledger {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{backend: backend, hasher: hasher, max: max, now: now}
}

// Store records a newly issued refresh token. The oldest entries are
// dropped once the user exceeds the cap.
func (l *Ledger) Store(ctx context.Context, userID, jti, raw string) error {
	entry, err := l.entry(jti, raw)
	if err != nil {
		return err
	}
	return l.backend.PushRefreshToken(ctx, userID, entry, l.max)
}

// Remove deletes the entry matching raw. It reports whether one was found.
func (l *Ledger) Remove(ctx context.Context, userID string, entries []Entry, jtiHint, raw string) (bool, error) {
	match, ok := l.find(entries, jtiHint, raw)
	if !ok {
		return false, nil
	}
	if err := l.backend.PullRefreshToken(ctx, userID, match.JTI); err != nil {
		return false, err
	}
	return true, nil
}

// Rotate replaces the entry matching oldRaw with a fresh entry for newRaw in
// one conditional update. Two concurrent rotations of the same token cannot
// both succeed: the loser gets ErrNotFound.
func (l *Ledger) Rotate(ctx context.Context, userID string, entries []Entry, jtiHint, oldRaw, newJTI, newRaw string) error {
	match, ok := l.find(entries, jtiHint, oldRaw)
	if !ok {
		return ErrNotFound
	}

	next, err := l.entry(newJTI, newRaw)
	if err != nil {
		return err
	}

	replaced, err := l.backend.ReplaceRefreshToken(ctx, userID, match.JTI, next)
	if err != nil {
		return err
	}
	if !replaced {
		return ErrNotFound
	}
	return nil
}

// Clear drops every entry for the user.
func (l *Ledger) Clear(ctx context.Context, userID string) error {
	return l.backend.ClearRefreshTokens(ctx, userID)
}

func (l *Ledger) entry(jti, raw string) (Entry, error) {
	if jti == "" || raw == "" {
		return Entry{}, errors.New("ledger entry requires jti and token")
	}
	hash, err := l.hasher.Hash(raw)
	if err != nil {
		return Entry{}, err
	}
	return Entry{JTI: jti, Hash: hash, CreatedAt: l.now().UTC()}, nil
}

func (l *Ledger) find(entries []Entry, jtiHint, raw string) (Entry, bool) {
	if raw == "" {
		return Entry{}, false
	}
	if jtiHint != "" {
		for _, e := range entries {
			if e.JTI == jtiHint && l.hasher.Matches(raw, e.Hash) {
				return e, true
			}
		}
	}
	for _, e := range entries {
		if e.JTI == jtiHint {
			continue
		}
		if l.hasher.Matches(raw, e.Hash) {
			return e, true
		}
	}
	return Entry{}, false
}
