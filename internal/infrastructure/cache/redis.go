// Package cache connects to Redis for the redis persistence backend.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Options parses a redis:// URL or a bare host:port into client options.
func Options(redisURL string) (*redis.Options, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opt, nil
	}
	if redisURL == "" {
		return nil, fmt.Errorf("parse redis url: empty address")
	}
	return &redis.Options{Addr: redisURL}, nil
}

// Connect creates a client and verifies the server answers PING.
// An unreachable server is an error so startup fails fast.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := Options(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("ping redis %s: %w", opt.Addr, err)
	}
	return client, nil
}

// Pinger exposes Redis reachability as a health check.
type Pinger struct {
	Client *redis.Client
}

// HealthCheck sends PING.
func (p Pinger) HealthCheck(ctx context.Context) error {
	if err := p.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
