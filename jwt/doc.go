// Package jwt signs and verifies access and refresh tokens with a versioned
// HMAC key set. Every token carries the signing key id in its kid header so
// keys can be rotated without invalidating tokens issued under older keys.
package jwt
