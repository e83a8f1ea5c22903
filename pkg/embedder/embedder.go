package embedder

import (
	"context"
	"errors"
	"fmt"
)

// Client maps text to fixed-length numeric vectors. Implementations declare
// their dimensionality up front so the schema registry can be validated
// against the provider before any write happens.
type Client interface {
	// Embed generates embeddings for the given texts, one vector per input,
	// in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector length this client produces.
	Dimensions() int

	// Close cleans up any resources.
	Close() error
}

// Config holds configuration for embedding clients.
type Config struct {
	Model      string `json:"model"`
	BaseURL    string `json:"base_url,omitempty"`
	Dimensions int    `json:"dimensions"`
}

// ErrEmptyInput is the permanent error returned for empty text. It is never
// retried.
var ErrEmptyInput = errors.New("embedding input is empty")

// TransientError marks a retryable provider failure (rate limit, network,
// server-side unavailability).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient embedding error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Is implements errors.Is support for TransientError.
func (e *TransientError) Is(target error) bool {
	_, ok := target.(*TransientError)
	return ok
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
