// Package redis connects to the Redis instance that backs the install lock.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sorathiyaom089/Student-Management-System/pkg/config"
)

const (
	defaultAddress = "localhost:6379"
	pingTimeout    = 5 * time.Second
)

// NewClient returns a client for the install-lock Redis, or nil, nil when
// redis.enabled is false and installs are serialised on this host only. The
// server must answer PING before the client is handed out.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	addr := cfg.Address
	if addr == "" {
		addr = defaultAddress
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect install-lock redis at %s (db %d): %w", addr, cfg.DB, err)
	}
	return client, nil
}
