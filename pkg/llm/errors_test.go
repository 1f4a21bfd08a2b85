package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", 429, true},
		{"server error", 500, true},
		{"bad gateway", 502, true},
		{"service unavailable", 503, true},
		{"bad request", 400, false},
		{"unauthorized", 401, false},
		{"not found", 404, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus(tt.status, "boom")
			var llmErr *Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.retryable, llmErr.Retryable)
			assert.Equal(t, tt.status, llmErr.StatusCode)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Run("retryable error", func(t *testing.T) {
		err := &Error{Retryable: true, Message: "overloaded"}
		assert.True(t, IsRetryable(err))
	})

	t.Run("terminal error", func(t *testing.T) {
		err := &Error{Retryable: false, Message: "invalid key"}
		assert.False(t, IsRetryable(err))
	})

	t.Run("wrapped retryable error", func(t *testing.T) {
		err := fmt.Errorf("call failed: %w", &Error{Retryable: true})
		assert.True(t, IsRetryable(err))
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		assert.True(t, IsRetryable(context.DeadlineExceeded))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.False(t, IsRetryable(errors.New("something else")))
	})

	t.Run("nil", func(t *testing.T) {
		assert.False(t, IsRetryable(nil))
	})
}

func TestClassifyTransport(t *testing.T) {
	t.Run("context canceled passes through", func(t *testing.T) {
		err := classifyTransport(fmt.Errorf("do request: %w", context.Canceled))
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, IsRetryable(err))
	})

	t.Run("deadline exceeded is retryable", func(t *testing.T) {
		err := classifyTransport(fmt.Errorf("do request: %w", context.DeadlineExceeded))
		assert.True(t, IsRetryable(err))
	})

	t.Run("generic network failure is retryable", func(t *testing.T) {
		err := classifyTransport(errors.New("connection refused"))
		assert.True(t, IsRetryable(err))
	})
}

func TestErrorFormat(t *testing.T) {
	err := &Error{Retryable: true, StatusCode: 429, Message: "slow down"}
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "slow down")
}
