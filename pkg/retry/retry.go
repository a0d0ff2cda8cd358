// Package retry waits for backing services to come up at process start.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// InitialInterval is the wait before the second attempt. It doubles after
// every failure.
var InitialInterval = time.Second

// Connect calls op until it succeeds, maxAttempts calls were made or ctx ends.
// It returns the number of calls made and the last error. A maxAttempts below
// one still makes a single call. When ctx ends first the error is ctx.Err().
func Connect(ctx context.Context, target string, maxAttempts int, op func(ctx context.Context) error) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = InitialInterval
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = 30 * InitialInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxAttempts-1)), ctx)

	calls := 0
	err := backoff.RetryNotify(func() error {
		calls++
		return op(ctx)
	}, policy, func(err error, next time.Duration) {
		log.Warn().
			Err(err).
			Str("target", target).
			Int("attempt", calls).
			Int("max_attempts", maxAttempts).
			Dur("next_retry_in", next).
			Msg("connection failed, retrying")
	})
	return calls, err
}
