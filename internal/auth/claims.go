package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// registered lists the claim names decoded into Claims fields.
var registered = map[string]bool{
	"exp": true,
	"iat": true,
	"nbf": true,
	"iss": true,
	"sub": true,
	"jti": true,
}

// Claims is the decoded token payload: the registered claims the service
// understands plus every other claim, untouched, in Extra.
type Claims struct {
	ExpiresAt *time.Time
	IssuedAt  *time.Time
	NotBefore *time.Time
	Issuer    string
	Subject   string
	ID        string

	Extra map[string]any
}

// claimsFromMap converts verified map claims. Type errors surface as ErrMalformed.
func claimsFromMap(mc jwt.MapClaims) (*Claims, error) {
	c := &Claims{Extra: make(map[string]any)}

	var err error
	if c.ExpiresAt, err = numericTime(mc.GetExpirationTime()); err != nil {
		return nil, err
	}
	if c.IssuedAt, err = numericTime(mc.GetIssuedAt()); err != nil {
		return nil, err
	}
	if c.NotBefore, err = numericTime(mc.GetNotBefore()); err != nil {
		return nil, err
	}
	if c.Issuer, err = mc.GetIssuer(); err != nil {
		return nil, ErrMalformed
	}
	if c.Subject, err = mc.GetSubject(); err != nil {
		return nil, ErrMalformed
	}
	if id, ok := mc["jti"]; ok {
		s, isString := id.(string)
		if !isString {
			return nil, ErrMalformed
		}
		c.ID = s
	}

	for k, v := range mc {
		if !registered[k] {
			c.Extra[k] = v
		}
	}
	return c, nil
}

func numericTime(d *jwt.NumericDate, err error) (*time.Time, error) {
	if err != nil {
		return nil, ErrMalformed
	}
	if d == nil {
		return nil, nil
	}
	t := d.UTC()
	return &t, nil
}
