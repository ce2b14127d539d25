package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm is the only signing algorithm accepted.
var Algorithm = jwt.SigningMethodHS256

// Validate verifies token under secret at instant now.
//
// Returns:
//   - *Claims: decoded claims on success
//   - error: ErrMalformed, ErrBadSignature or ErrExpired
//
// A missing exp claim is accepted. The HMAC comparison is constant-time.
func Validate(token, secret string, now time.Time) (*Claims, error) {
	return validate(token, secret, now, false)
}

// Validator binds the shared secret and clock for repeated validation.
type Validator struct {
	Secret string

	// RequireExpiry rejects tokens without exp as ErrMalformed.
	RequireExpiry bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Validate verifies token with the bound secret at the current time.
func (v Validator) Validate(token string) (*Claims, error) {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	return validate(token, v.Secret, now(), v.RequireExpiry)
}

func validate(token, secret string, now time.Time, requireExpiry bool) (*Claims, error) {
	if secret == "" {
		return nil, ErrBadSignature
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{Algorithm.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if requireExpiry {
		opts = append(opts, jwt.WithExpirationRequired())
	}

	mc := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, mc, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, classify(err)
	}

	return claimsFromMap(mc)
}

// classify maps golang-jwt errors onto the package's three failure kinds.
// The signature is verified before claims, so a forged expired token is
// reported as ErrBadSignature.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	default:
		return ErrMalformed
	}
}
