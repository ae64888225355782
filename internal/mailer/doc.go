// Package mailer delivers account mail (verification and password reset)
// off the request path. A Dispatcher buffers messages on a channel and a
// single worker hands them to a Sender: SMTP in production, a log-only
// sender when no relay is configured.
package mailer
