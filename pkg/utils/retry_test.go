package utils_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shadowdev/shadowbot/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTemporary = errors.New("temporary error")

func testRetryOptions() utils.RetryOptions {
	return utils.RetryOptions{
		MaxElapsedTime:  time.Second,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		MaxRetries:      3,
	}
}

func TestRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		failures      int
		expectedCalls int
		expectedErr   error
	}{
		{
			name:          "succeeds first try",
			failures:      0,
			expectedCalls: 1,
		},
		{
			name:          "succeeds after retries",
			failures:      2,
			expectedCalls: 3,
		},
		{
			name:          "fails all retries",
			failures:      10,
			expectedCalls: 4, // Initial + 3 retries
			expectedErr:   errTemporary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := utils.Retry(t.Context(), func() error {
				calls++
				if calls <= tt.failures {
					return errTemporary
				}
				return nil
			}, testRetryOptions())

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.expectedCalls, calls)
		})
	}
}

func TestWithRetryReturnsResult(t *testing.T) {
	t.Parallel()

	calls := 0
	result, err := utils.WithRetry(t.Context(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errTemporary
		}
		return "done", nil
	}, testRetryOptions())

	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 2, calls)
}

func TestCleanupRetryOptionsRetriesOnce(t *testing.T) {
	t.Parallel()

	opts := utils.GetCleanupRetryOptions()
	opts.InitialInterval = time.Millisecond
	opts.MaxInterval = time.Millisecond

	calls := 0
	err := utils.Retry(t.Context(), func() error {
		calls++
		return errTemporary
	}, opts)

	require.ErrorIs(t, err, errTemporary)
	assert.Equal(t, 2, calls)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	calls := 0

	opts := utils.RetryOptions{
		MaxElapsedTime:  5 * time.Second,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
		MaxRetries:      5,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := utils.Retry(ctx, func() error {
		calls++
		return errTemporary
	}, opts)

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls, 5)
}
