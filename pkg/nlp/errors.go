package nlp

import (
	"errors"
	"fmt"
)

// Common language model client errors.
var (
	// ErrRateLimit indicates the provider rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrEmptyResponse indicates the model returned an empty response.
	ErrEmptyResponse = errors.New("the model returned an empty response")
)

// RateLimitError is a retryable rate-limit failure.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return ErrRateLimit.Error()
	}
	return e.Message
}

// Is implements errors.Is support for RateLimitError so wrapped instances
// match both the struct form and the ErrRateLimit sentinel.
func (e *RateLimitError) Is(target error) bool {
	if target == ErrRateLimit {
		return true
	}
	_, ok := target.(*RateLimitError)
	return ok
}

// NewRateLimitError creates a rate limit error with an optional message.
func NewRateLimitError(message ...string) *RateLimitError {
	err := &RateLimitError{}
	if len(message) > 0 {
		err.Message = message[0]
	}
	return err
}

// RefusalError indicates the model declined to produce the requested output.
// It is permanent for the given prompt.
type RefusalError struct {
	Message string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("model refused the request: %s", e.Message)
}

// Is implements errors.Is support for RefusalError.
func (e *RefusalError) Is(target error) bool {
	_, ok := target.(*RefusalError)
	return ok
}

// NewRefusalError creates a refusal error.
func NewRefusalError(message string) *RefusalError {
	return &RefusalError{Message: message}
}

// EmptyResponseError is a permanent empty-response failure.
type EmptyResponseError struct {
	Message string
}

func (e *EmptyResponseError) Error() string {
	return e.Message
}

// Is implements errors.Is support for EmptyResponseError.
func (e *EmptyResponseError) Is(target error) bool {
	_, ok := target.(*EmptyResponseError)
	return ok
}

// NewEmptyResponseError creates an empty response error.
func NewEmptyResponseError(message string) *EmptyResponseError {
	return &EmptyResponseError{Message: message}
}
