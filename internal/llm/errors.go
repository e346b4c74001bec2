package llm

import (
	"fmt"
	"time"
)

// AuthError marks rejected credentials. It is fatal at startup and never
// retried.
type AuthError struct {
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("completion auth rejected (status=%d): %s", e.Status, e.Detail)
}

// RateLimitError marks remote throttling. Callers back off and retry through
// the pacer.
type RateLimitError struct {
	Status     int
	Detail     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("completion rate limited (status=%d): %s", e.Status, e.Detail)
}

// BadRequestError marks a malformed request. Retrying the same payload cannot
// succeed.
type BadRequestError struct {
	Status int
	Detail string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("completion request rejected (status=%d): %s", e.Status, e.Detail)
}

// TransientError marks network faults, timeouts, and server-side failures
// that are eligible for bounded retries.
type TransientError struct {
	Status int
	Detail string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("completion transient failure: %v", e.Err)
	}
	return fmt.Sprintf("completion transient failure (status=%d): %s", e.Status, e.Detail)
}

func (e *TransientError) Unwrap() error { return e.Err }

// EmptyResponseError marks a structurally successful call whose message
// content was empty or missing. It is never folded into an empty string.
type EmptyResponseError struct {
	FinishReason string
	Detail       string
}

func (e *EmptyResponseError) Error() string {
	if e.FinishReason != "" {
		return fmt.Sprintf("completion returned empty message (finish_reason=%s)", e.FinishReason)
	}
	return fmt.Sprintf("completion returned empty message: %s", e.Detail)
}

// classifyStatus maps an HTTP status outside 2xx onto the transport error
// taxonomy.
func classifyStatus(status int, detail string, retryAfter time.Duration) error {
	switch {
	case status == 401 || status == 403:
		return &AuthError{Status: status, Detail: detail}
	case status == 429:
		return &RateLimitError{Status: status, Detail: detail, RetryAfter: retryAfter}
	case status >= 400 && status < 500:
		return &BadRequestError{Status: status, Detail: detail}
	default:
		return &TransientError{Status: status, Detail: detail}
	}
}
