// Package password hashes and verifies user passwords. New hashes use the
// configured algorithm (bcrypt or argon2id); verification dispatches on the
// stored hash prefix so both formats stay readable.
package password
