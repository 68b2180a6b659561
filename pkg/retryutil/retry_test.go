package retryutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
)

func TestDoReturnsOnFirstSuccess(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), 3, time.Millisecond, 10*time.Millisecond, func() (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableErrorsUntilSuccess(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), 3, time.Millisecond, 10*time.Millisecond, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errs.New(errs.KindNetwork, "dial failed")
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, result)
	assert.Equal(t, 3, calls)
}

func TestDoStopsImmediatelyOnNonRetryableError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), 3, time.Millisecond, 10*time.Millisecond, func() (int, error) {
		calls++
		return 0, errs.New(errs.KindHTTP4xx, "bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errs.IsKind(err, errs.KindHTTP4xx))
}

func TestDoExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), 3, time.Millisecond, 10*time.Millisecond, func() (int, error) {
		calls++
		return 0, errs.New(errs.KindRateLimited, "slow down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, errs.IsKind(err, errs.KindRateLimited))
}

func TestDoAbortsOnContextCancellationBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, 5, 20*time.Millisecond, 100*time.Millisecond, func() (int, error) {
		calls++
		if calls == 1 {
			cancel()
		}
		return 0, errs.New(errs.KindNetwork, "dial failed")
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindCanceled))
}
