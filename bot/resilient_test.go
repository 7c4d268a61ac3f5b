package bot

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

func floodError(retryAfter int) error {
	return tele.FloodError{RetryAfter: retryAfter}
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	attempts := 0
	message, err := withRetry(func() (*tele.Message, error) {
		attempts++
		return &tele.Message{ID: 1}, nil
	})

	require.NoError(t, err)
	require.NotNil(t, message)
	assert.Equal(t, 1, message.ID)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryWaitsOutRateLimit(t *testing.T) {
	attempts := 0
	message, err := withRetry(func() (*tele.Message, error) {
		attempts++
		if attempts < 3 {
			return nil, floodError(0)
		}
		return &tele.Message{ID: 7}, nil
	})

	require.NoError(t, err)
	require.NotNil(t, message)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryNoopEditIsSuccess(t *testing.T) {
	attempts := 0
	message, err := withRetry(func() (*tele.Message, error) {
		attempts++
		return nil, tele.ErrSameMessageContent
	})

	assert.NoError(t, err)
	assert.Nil(t, message)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryOtherErrorsFailImmediately(t *testing.T) {
	attempts := 0
	cause := errors.New("wire fell over")
	_, err := withRetry(func() (*tele.Message, error) {
		attempts++
		return nil, cause
	})

	assert.Equal(t, cause, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryExhaustsAttemptBudget(t *testing.T) {
	attempts := 0
	_, err := withRetry(func() (*tele.Message, error) {
		attempts++
		return nil, floodError(0)
	})

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, maxSendAttempts, attempts)
}
