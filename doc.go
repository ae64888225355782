// Package reelauth is the authentication core of the movie-discovery
// service: registration with email verification, credential login guarded
// by a dual-axis rate limiter, rotating refresh tokens signed under
// versioned keys, logout, and password reset.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// reelauth is the public surface. It exposes [Engine], [Builder], [Config],
// the [UserStore] contract and value types. Flow orchestration, grant
// storage, rate limiting, the session ledger and mail dispatch live under
// internal/ and are never exported.
//
// # Token model
//
// Access tokens are short-lived HS256 JWTs verified without any store
// access. Refresh tokens are longer-lived JWTs whose hashes are kept in a
// capped per-user ledger; each refresh replaces the presented entry in one
// conditional update, so a refresh token works exactly once.
package reelauth
