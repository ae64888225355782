// Package middleware exposes HTTP middleware built on reelauth.Engine.
//
// # Guards
//
//   - [Guard] verifies the bearer access token and stores the caller's
//     [reelauth.Identity] in the request context.
//   - [RequestLogger] writes one structured log line per request.
//   - [HTTPMetrics] counts requests per chi route pattern.
//   - [CORS] admits the client origins with credentials.
//   - [RealIP] trusts forwarding headers only from configured proxies.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// parse JWTs or read any store; every decision is delegated to
// Engine.ValidateAccess, which only checks the signed claims.
package middleware
