package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransientError marks a failure worth retrying: timeouts, rate limits,
// server-side errors.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient LLM failure (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient LLM failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix: bad requests,
// auth failures, empty completions.
type PermanentError struct {
	Status int
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("permanent LLM failure (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("permanent LLM failure: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether an error is worth retrying. Network timeouts
// count as transient; context cancellation does not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// classifyStatus wraps an HTTP failure status into the retry taxonomy.
func classifyStatus(status int, err error) error {
	if status == 429 || status >= 500 {
		return &TransientError{Status: status, Err: err}
	}
	return &PermanentError{Status: status, Err: err}
}
