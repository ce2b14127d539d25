// webhook-token mints HS256 bearer tokens for the incoming webhook.
//
//	WEBHOOK_JWT_SECRET=... webhook-token --subject doorbell-button --ttl 8760h
//
// The token is printed to stdout. A zero --ttl produces a token without
// exp, which only works while security.jwt.require_expiry is off.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/incoming-webhook/internal/auth"
)

// minSecretLength matches the server's configuration check.
const minSecretLength = 32

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("webhook-token", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	secret := flags.String("secret", "", "shared secret (default $WEBHOOK_JWT_SECRET)")
	ttl := flags.Duration("ttl", 24*time.Hour, "token lifetime; 0 omits exp")
	issuer := flags.String("issuer", "", "iss claim")
	subject := flags.String("subject", "", "sub claim, e.g. the calling device")
	claims := flags.StringArray("claim", nil, "extra claim as key=value (repeatable)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	key := *secret
	if key == "" {
		key = os.Getenv("WEBHOOK_JWT_SECRET")
	}
	if key == "" {
		return errors.New("no secret: pass --secret or set WEBHOOK_JWT_SECRET")
	}
	if len(key) < minSecretLength {
		return fmt.Errorf("secret must be at least %d characters", minSecretLength)
	}
	if *ttl < 0 {
		return errors.New("--ttl must not be negative")
	}

	extra, err := parseClaims(*claims)
	if err != nil {
		return err
	}

	token, err := auth.GenerateToken(key, auth.TokenOptions{
		TTL:     *ttl,
		Issuer:  *issuer,
		Subject: *subject,
		Extra:   extra,
	})
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	if *ttl == 0 {
		fmt.Fprintln(stderr, "warning: token has no exp claim and never expires")
	}
	fmt.Fprintln(stdout, token)
	return nil
}

// parseClaims turns key=value pairs into claims. Values that parse as
// integers or booleans keep that type; everything else is a string.
func parseClaims(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --claim %q: want key=value", p)
		}
		switch {
		case v == "true" || v == "false":
			out[k] = v == "true"
		default:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				out[k] = n
			} else {
				out[k] = v
			}
		}
	}
	return out, nil
}
