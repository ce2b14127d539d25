// Package auth verifies the bearer tokens that gate the webhook.
//
// Tokens are JWS compact tokens signed with HMAC-SHA-256 under a shared
// secret. Validation is a pure function of (token, secret, now): it has no
// state and no side effects. Failures are classified as ErrMalformed,
// ErrBadSignature or ErrExpired for logging, but callers at the HTTP
// boundary must collapse all of them into one response.
//
// A token without an exp claim never expires. That is accepted unless the
// Validator requires expiry.
package auth
