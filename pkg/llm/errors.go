package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrDisabled is returned by the noop client when LLM calls are disabled
// (no_llm=true or no API key).
var ErrDisabled = errors.New("llm: disabled by configuration")

// Error is the classified transport error. Retryable errors (network
// failures, timeouts, 429, 5xx) may be retried with backoff; terminal errors
// (auth, bad request, schema) must surface to the caller immediately.
type Error struct {
	Retryable  bool
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	kind := "terminal"
	if e.Retryable {
		kind = "retryable"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm: %s error (HTTP %d): %s", kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm: %s error: %s", kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries a retryable LLM classification.
// Bare context deadline errors also count: the caller's clock, not the
// provider, cut the call short.
func IsRetryable(err error) bool {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// classifyStatus maps an HTTP status to an *Error.
func classifyStatus(status int, body string) *Error {
	retryable := status == http.StatusTooManyRequests || status >= 500
	return &Error{
		Retryable:  retryable,
		StatusCode: status,
		Message:    truncate(body, 512),
	}
}

// classifyTransport maps a request-level failure (no HTTP response) to an
// *Error. Cancellation passes through untouched so callers can distinguish
// it from provider failure.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Retryable: true, Message: "request deadline exceeded", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Retryable: true, Message: "network timeout", Err: err}
	}
	return &Error{Retryable: true, Message: err.Error(), Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
