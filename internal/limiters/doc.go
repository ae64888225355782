// Package limiters composes internal/rate limiters into the policies the
// auth flows enforce.
//
//   - [LoginLimiter]: dual-axis brute-force protection keyed by normalized
//     email and by client IP.
//   - [MailLimiter]: per-address throttle for verification and reset mail
//     requests.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
package limiters
