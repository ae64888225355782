package grants

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recordVersionV1 = 1 // expiry in Unix seconds
	recordVersionV2 = 2 // expiry in Unix milliseconds
)

// Kind namespaces grants.
type Kind string

const (
	KindEmailVerification Kind = "ev"
	KindPasswordReset     Kind = "pr"
)

var (
	ErrNotFound         = errors.New("grant not found")
	ErrRedisUnavailable = errors.New("grant redis unavailable")
)

// compareAndDeleteLua deletes KEYS[1] only while it still holds ARGV[1].
var compareAndDeleteLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return 0
end
if data ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// Grant is a stored one-time secret.
type Grant struct {
	UserID    string
	Hash      string
	ExpiresAt time.Time

	encoded []byte
}

// Store is a Redis grant store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore returns a Store. An empty prefix defaults to "grant" and a nil
// now to time.Now.
func NewStore(redisClient redis.UniversalClient, prefix string, now func() time.Time) *Store {
	if prefix == "" {
		prefix = "grant"
	}
	if now == nil {
		now = time.Now
	}
	return &Store{redis: redisClient, prefix: prefix, now: now}
}

func (s *Store) key(kind Kind, userID string) string {
	return s.prefix + ":" + string(kind) + ":" + userID
}

// Issue stores a grant for userID, replacing any previous grant of the same
// kind. The key expires with the grant.
func (s *Store) Issue(ctx context.Context, kind Kind, userID, hash string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("grant already expired")
	}

	encoded, err := encodeRecord(&Grant{UserID: userID, Hash: hash, ExpiresAt: expiresAt})
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(kind, userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads the current grant for userID.
func (s *Store) Get(ctx context.Context, kind Kind, userID string) (*Grant, error) {
	data, err := s.redis.Get(ctx, s.key(kind, userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	record, err := decodeRecord(data)
	if err != nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// Consume deletes g if it is still the current grant. It returns ErrNotFound
// when another caller consumed or replaced it first.
func (s *Store) Consume(ctx context.Context, kind Kind, g *Grant) error {
	if g == nil || len(g.encoded) == 0 {
		return ErrNotFound
	}

	n, err := compareAndDeleteLua.Run(ctx, s.redis, []string{s.key(kind, g.UserID)}, g.encoded).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every grant of kind for userID.
func (s *Store) DeleteAll(ctx context.Context, kind Kind, userID string) error {
	if err := s.redis.Del(ctx, s.key(kind, userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func encodeRecord(g *Grant) ([]byte, error) {
	if len(g.UserID) > 65535 || len(g.Hash) > 65535 {
		return nil, errors.New("grant record field too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(recordVersionV2)
	if err := binary.Write(&buf, binary.BigEndian, g.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(g.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(g.UserID)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(g.Hash))); err != nil {
		return nil, err
	}
	buf.WriteString(g.Hash)

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Grant, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	var expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, err
	}
	var expiry time.Time
	switch version {
	case recordVersionV1:
		expiry = time.Unix(expiresAt, 0)
	case recordVersionV2:
		expiry = time.UnixMilli(expiresAt)
	default:
		return nil, errors.New("invalid grant record version")
	}

	userID, err := readString(reader)
	if err != nil {
		return nil, err
	}
	hash, err := readString(reader)
	if err != nil {
		return nil, err
	}

	return &Grant{
		UserID:    userID,
		Hash:      hash,
		ExpiresAt: expiry,
		encoded:   data,
	}, nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
