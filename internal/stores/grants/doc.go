// Package grants persists one-time verification and password-reset grants in
// Redis. Each (kind, user) pair owns a single key, so issuing a grant replaces
// any earlier one and at most one grant per kind is ever usable.
//
// Records are versioned binary blobs with a TTL matching the grant expiry.
// Secrets are stored as hashes only; matching is the caller's job.
package grants
