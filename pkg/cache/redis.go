package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-issuance/pkg/retry"
)

// Options configures the Redis client.
type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewClient creates a Redis client and waits until it answers PING.
func NewClient(ctx context.Context, opts Options, maxRetries int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	attempts, err := retry.Connect(ctx, "redis", maxRetries, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", attempts, err)
	}

	log.Info().Str("addr", opts.Addr).Int("attempts", attempts).Msg("redis connection established")
	return client, nil
}
