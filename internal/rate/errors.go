package rate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is matched by every *LimitError.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps backend failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// LimitError reports an exhausted budget and how long to wait.
type LimitError struct {
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// Is makes errors.Is(err, ErrRateLimited) hold.
func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterSeconds rounds d up to whole seconds, minimum one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
