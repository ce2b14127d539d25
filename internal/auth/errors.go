package auth

import "errors"

// Validation failures. Every one of them maps to the same 401 at the HTTP layer.
var (
	// ErrMalformed is returned when the token is not a decodable JWS, a
	// registered claim has the wrong type, or a required claim is absent.
	ErrMalformed = errors.New("auth: malformed token")

	// ErrBadSignature is returned when the signature does not verify with
	// HS256 under the shared secret, or the token names another algorithm.
	ErrBadSignature = errors.New("auth: bad signature")

	// ErrExpired is returned when exp <= now, or nbf > now.
	ErrExpired = errors.New("auth: token expired")

	// ErrMissingCredential is returned by BearerToken for an absent or
	// non-Bearer Authorization header.
	ErrMissingCredential = errors.New("auth: missing bearer credential")
)
