package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/drivelink/drivelink-api/pkg/config"
)

// Session reads sit on the webhook path, so operation timeouts stay tight:
// a stalled Redis should fail the request and let the transport retry,
// not hold the Twilio callback open.
const (
	dialTimeout = 3 * time.Second
	opTimeout   = 500 * time.Millisecond
)

// NewRedis connects and verifies the Redis client used for sessions,
// registration state and dedup claims.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
