package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript atomically checks the block key, counts the hit and blocks
// on exhaustion. Returns {remaining, retryAfterMs}; remaining is -1 when the
// caller is limited.
var consumeScript = redis.NewScript(`
local blocked = redis.call("PTTL", KEYS[2])
if blocked > 0 then
  return {-1, blocked}
end
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
local points = tonumber(ARGV[1])
if count > points then
  local block = tonumber(ARGV[3])
  if block > 0 then
    redis.call("SET", KEYS[2], "1", "PX", block)
    return {-1, block}
  end
  local window = redis.call("PTTL", KEYS[1])
  if window < 0 then
    window = tonumber(ARGV[2])
  end
  return {-1, window}
end
return {points - count, 0}
`)

// Config holds one limiter's budget.
type Config struct {
	Points        int
	Duration      time.Duration
	BlockDuration time.Duration
}

// Result describes a successful consume.
type Result struct {
	Remaining int
}

// Limiter counts hits per key within a window.
type Limiter struct {
	redis  redis.UniversalClient
	name   string
	config Config
}

// New creates a named [Limiter]. The name namespaces its Redis keys.
func New(redisClient redis.UniversalClient, name string, cfg Config) (*Limiter, error) {
	if name == "" {
		return nil, errors.New("limiter name is required")
	}
	if cfg.Points <= 0 {
		return nil, errors.New("limiter points must be > 0")
	}
	if cfg.Duration <= 0 {
		return nil, errors.New("limiter duration must be > 0")
	}
	if cfg.BlockDuration < 0 {
		return nil, errors.New("limiter block duration must be >= 0")
	}
	return &Limiter{redis: redisClient, name: name, config: cfg}, nil
}

// Consume spends one point for key. An exhausted or blocked key returns a
// *LimitError and spends nothing further.
func (l *Limiter) Consume(ctx context.Context, key string) (Result, error) {
	res, err := consumeScript.Run(ctx, l.redis,
		[]string{l.windowKey(key), l.blockKey(key)},
		l.config.Points,
		l.config.Duration.Milliseconds(),
		l.config.BlockDuration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return Result{}, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}

	if res[0] < 0 {
		return Result{}, &LimitError{RetryAfter: time.Duration(res[1]) * time.Millisecond}
	}
	return Result{Remaining: int(res[0])}, nil
}

// Reset clears the counter and any block for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.windowKey(key), l.blockKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Name returns the limiter's key namespace.
func (l *Limiter) Name() string {
	return l.name
}

func (l *Limiter) windowKey(key string) string {
	return "rl:" + l.name + ":" + key
}

func (l *Limiter) blockKey(key string) string {
	return "rlb:" + l.name + ":" + key
}
