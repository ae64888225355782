// Package flows holds the auth state machines (register, verify email,
// login, refresh, logout, password reset) as pure functions over a Deps
// struct of closures. The root engine wires the closures once; the flows own
// ordering and failure classification and nothing else.
//
// Ordering guarantees enforced here:
//   - login consumes rate-limit budget before looking the user up;
//   - refresh verifies the token signature before touching the store;
//   - password reset validates and consumes the grant before mutating the
//     password hash.
package flows
