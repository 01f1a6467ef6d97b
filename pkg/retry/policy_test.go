package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestPolicyRetriesServerErrorsUntilExhausted(t *testing.T) {
	calls := 0
	retried := 0
	p := fastPolicy(3)
	p.OnRetry = func(int, error) { retried++ }

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return &HTTPStatusError{StatusCode: http.StatusBadGateway}
	})

	require.Error(t, err)
	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retried)
}

func TestPolicyStopsOnClientErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return pkgerrors.Wrap(pkgerrors.CodeDependency, &HTTPStatusError{StatusCode: http.StatusBadRequest}, "submit")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicyRetriesRateLimitThenSucceeds(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &HTTPStatusError{StatusCode: http.StatusTooManyRequests}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestNoRetryRunsOnce(t *testing.T) {
	calls := 0
	_ = NoRetry().Do(context.Background(), func(context.Context) error {
		calls++
		return &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}
	})
	assert.Equal(t, 1, calls)
}

func TestDefaultRetryable(t *testing.T) {
	assert.False(t, DefaultRetryable(nil))
	assert.False(t, DefaultRetryable(context.Canceled))
	assert.True(t, DefaultRetryable(&HTTPStatusError{StatusCode: http.StatusRequestTimeout}))
	assert.False(t, DefaultRetryable(&HTTPStatusError{StatusCode: http.StatusNotFound}))
	assert.False(t, DefaultRetryable(pkgerrors.New(pkgerrors.CodeValidation, "bad")))
	assert.True(t, DefaultRetryable(pkgerrors.New(pkgerrors.CodeDependency, "down")))
}
