package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gold-portfolio/internal/logging"
)

func quietContext() context.Context {
	return logging.WithLogger(context.Background(), logging.Discard())
}

func fastConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  4,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithExponentialBackoff_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(quietContext(), fastConfig(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, calls)
	assert.NoError(t, result.LastError)
}

func TestWithExponentialBackoff_GivesUp(t *testing.T) {
	boom := errors.New("boom")
	result := WithExponentialBackoff(quietContext(), fastConfig(), func(context.Context, int) error {
		return boom
	})

	assert.False(t, result.Success)
	assert.Equal(t, 4, result.Attempts)
	assert.ErrorIs(t, result.LastError, boom)
}

func TestWithExponentialBackoff_NonRetryable(t *testing.T) {
	fatal := errors.New("bad password")
	cfg := fastConfig()
	cfg.ShouldRetry = func(err error) bool { return !errors.Is(err, fatal) }

	result := WithExponentialBackoff(quietContext(), cfg, func(context.Context, int) error {
		return fatal
	})
	assert.Equal(t, 1, result.Attempts)
	assert.False(t, result.Success)
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(quietContext())
	cfg := fastConfig()
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	result := WithExponentialBackoff(ctx, cfg, func(context.Context, int) error {
		cancel()
		return errors.New("down")
	})
	assert.Equal(t, 1, result.Attempts)
	assert.ErrorIs(t, result.LastError, context.Canceled)
}

func TestCalculateDelay(t *testing.T) {
	cfg := &RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, calculateDelay(cfg, 1))
	assert.Equal(t, 2*time.Second, calculateDelay(cfg, 2))
	assert.Equal(t, 4*time.Second, calculateDelay(cfg, 3))
	assert.Equal(t, 5*time.Second, calculateDelay(cfg, 4))
}

func TestDo(t *testing.T) {
	require.NoError(t, Do(quietContext(), fastConfig(), func(context.Context, int) error { return nil }))

	err := Do(quietContext(), fastConfig(), func(context.Context, int) error { return errors.New("down") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 4 attempts")
}
