// Package rate implements a Redis-backed points / duration / block-duration
// limiter. Each key gets a fixed window counter; exceeding the budget sets a
// block key that fails every attempt until it expires, independent of the
// window.
//
// Key layout:
//   - rl:{name}:{key}    window counter
//   - rlb:{name}:{key}   block marker
//
// Domain policies (which keys, which budgets) live in internal/limiters.
package rate
