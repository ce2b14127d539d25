package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenOptions controls GenerateToken.
type TokenOptions struct {
	// TTL sets exp = now + TTL. Zero omits exp and the token never expires.
	TTL     time.Duration
	Issuer  string
	Subject string

	// Extra claims are copied verbatim; registered names are overwritten.
	Extra map[string]any

	// Now defaults to time.Now.
	Now func() time.Time
}

// GenerateToken signs an HS256 token with iat, jti and the requested claims.
func GenerateToken(secret string, opts TokenOptions) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing token: %w", jwt.ErrInvalidKey)
	}

	now := time.Now()
	if opts.Now != nil {
		now = opts.Now()
	}

	mc := jwt.MapClaims{}
	for k, v := range opts.Extra {
		mc[k] = v
	}
	mc["iat"] = jwt.NewNumericDate(now)
	mc["jti"] = uuid.NewString()
	if opts.TTL > 0 {
		mc["exp"] = jwt.NewNumericDate(now.Add(opts.TTL))
	} else {
		delete(mc, "exp")
	}
	if opts.Issuer != "" {
		mc["iss"] = opts.Issuer
	}
	if opts.Subject != "" {
		mc["sub"] = opts.Subject
	}

	signed, err := jwt.NewWithClaims(Algorithm, mc).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
