package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nft-checkout/internal/resilience"
)

func TestRetryEventuallySucceeds(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := resilience.Retry(context.Background(), resilience.RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		OnRetry: func(_ int, delay time.Duration, _ error) {
			delays = append(delays, delay)
		},
	}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := resilience.Retry(context.Background(), resilience.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond},
		func(context.Context) error {
			calls++
			return boom
		})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	bad := errors.New("bad payload")
	err := resilience.Retry(context.Background(), resilience.RetryPolicy{MaxRetries: 5, BaseDelay: time.Millisecond},
		func(context.Context) error {
			calls++
			return resilience.Permanent(bad)
		})
	require.ErrorIs(t, err, bad)
	require.True(t, resilience.IsPermanent(err))
	require.Equal(t, 1, calls)
	require.NoError(t, resilience.Permanent(nil))
}

func TestRetryAttemptTimeout(t *testing.T) {
	calls := 0
	err := resilience.Retry(context.Background(), resilience.RetryPolicy{
		MaxRetries:     1,
		BaseDelay:      time.Millisecond,
		AttemptTimeout: 5 * time.Millisecond,
	}, func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 2, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := resilience.Retry(ctx, resilience.RetryPolicy{MaxRetries: 3, BaseDelay: time.Hour},
		func(context.Context) error {
			calls++
			cancel()
			return errors.New("down")
		})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

type slowDown struct{ wait time.Duration }

func (e slowDown) Error() string              { return "slow down" }
func (e slowDown) RetryDelay() time.Duration { return e.wait }

func TestRetryHonoursRetryDelayHint(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := resilience.Retry(context.Background(), resilience.RetryPolicy{
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
		OnRetry:    func(_ int, d time.Duration, _ error) { delays = append(delays, d) },
	}, func(context.Context) error {
		calls++
		if calls == 1 {
			return slowDown{wait: 15 * time.Millisecond}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{15 * time.Millisecond}, delays)
}

func TestRetryTreatsHintAboveMaxDelayAsFinal(t *testing.T) {
	calls := 0
	retried := false
	start := time.Now()
	err := resilience.Retry(context.Background(), resilience.RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   50 * time.Millisecond,
		OnRetry:    func(int, time.Duration, error) { retried = true },
	}, func(context.Context) error {
		calls++
		return slowDown{wait: time.Hour}
	})
	require.ErrorAs(t, err, new(slowDown))
	require.Equal(t, 1, calls)
	require.False(t, retried)
	require.Less(t, time.Since(start), time.Second)
}
