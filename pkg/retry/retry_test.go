package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetries(t *testing.T) {
	t.Helper()
	prev := InitialInterval
	InitialInterval = time.Millisecond
	t.Cleanup(func() { InitialInterval = prev })
}

func TestConnect_SucceedsAfterFailures(t *testing.T) {
	fastRetries(t)

	calls, err := Connect(context.Background(), "db", 5, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	n := 0
	calls, err = Connect(context.Background(), "db", 5, func(ctx context.Context) error {
		n++
		if n < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestConnect_ExhaustsAttempts(t *testing.T) {
	fastRetries(t)
	boom := errors.New("connection refused")

	calls, err := Connect(context.Background(), "db", 3, func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestConnect_ZeroAttemptsCallsOnce(t *testing.T) {
	fastRetries(t)

	calls, err := Connect(context.Background(), "db", 0, func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestConnect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls, err := Connect(ctx, "db", 5, func(ctx context.Context) error {
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
