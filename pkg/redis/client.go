// Package redis connects to the Redis deployment backing shared session
// state.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultTimeout = 5 * time.Second

// Config describes where Redis lives. URL takes precedence; otherwise Addrs
// selects the topology: MasterName set means Sentinel, several addresses
// mean Cluster, a single address is standalone.
type Config struct {
	URL        string
	Addrs      []string
	MasterName string
	Username   string
	Password   string
	DB         int
	// Timeout applies to dial, read and write. Zero means five seconds.
	Timeout time.Duration
}

// Configured reports whether any connection target is set.
func (c Config) Configured() bool {
	return c.URL != "" || len(c.Addrs) > 0
}

// Connect opens and pings a client. It returns (nil, nil) when cfg names
// no target, so callers can fall back to in-process storage.
func Connect(ctx context.Context, cfg Config) (goredis.UniversalClient, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var client goredis.UniversalClient
	if cfg.URL != "" {
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts.DialTimeout = orDefault(opts.DialTimeout, timeout)
		opts.ReadTimeout = orDefault(opts.ReadTimeout, timeout)
		opts.WriteTimeout = orDefault(opts.WriteTimeout, timeout)
		client = goredis.NewClient(opts)
	} else {
		client = goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:        cfg.Addrs,
			MasterName:   cfg.MasterName,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d == 0 {
		return fallback
	}
	return d
}
