package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/edu-admin-console/pkg/config"
)

const (
	pingTimeout = 5 * time.Second
	clientName  = "edu-admin-console"
)

// Addr renders the host:port pair for the configured Redis.
func Addr(cfg config.RedisConfig) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// Options maps the console's Redis settings onto client options. The one
// timeout bounds dialing, reads and writes alike.
func Options(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:       Addr(cfg),
		ClientName: clientName,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
		opts.PoolTimeout = cfg.Timeout + time.Second
	}
	return opts
}

// NewRedis returns a connected client. It fails when the server does not
// answer a ping so the caller can decide to run without Redis.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(Options(cfg))

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s db %d: %w", Addr(cfg), cfg.DB, err)
	}

	return client, nil
}
