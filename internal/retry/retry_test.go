package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/rollcall/internal/errors"
)

func TestDoStopsOnSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Default().Do(t.Context(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return errors.ErrNoMatch
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	var retried []int
	p := Default()
	p.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	calls := 0
	err := p.Do(t.Context(), func(context.Context, int) error {
		calls++
		return errors.ErrNoBiometricCaptured
	})

	require.ErrorIs(t, err, errors.ErrNoBiometricCaptured)
	assert.True(t, errors.IsCategory(err, errors.CategoryBiometricCapture))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoHonoursRetryable(t *testing.T) {
	t.Parallel()

	p := Policy{
		MaxAttempts: 3,
		Retryable: func(err error) bool {
			return !errors.Is(err, errors.ErrCaptureDeviceUnavailable)
		},
	}

	calls := 0
	err := p.Do(t.Context(), func(context.Context, int) error {
		calls++
		return errors.ErrCaptureDeviceUnavailable
	})

	require.ErrorIs(t, err, errors.ErrCaptureDeviceUnavailable)
	assert.Equal(t, 1, calls, "non-retryable errors abort immediately")
}

func TestZeroPolicyMakesOneAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Policy{}.Do(t.Context(), func(context.Context, int) error {
		calls++
		return errors.ErrNoMatch
	})

	require.ErrorIs(t, err, errors.ErrNoMatch)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	p := Policy{MaxAttempts: 5, Backoff: time.Hour}

	calls := 0
	err := p.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return errors.ErrNoMatch
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
