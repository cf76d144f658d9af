package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a user-correctable problem with the submitted batch.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBatchTooLarge signals a batch above the configured size limit.
	ErrBatchTooLarge = errors.New("batch too large")
	// ErrDimensionMismatch signals embeddings of differing or unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidMatrix signals a malformed similarity matrix.
	ErrInvalidMatrix = errors.New("invalid similarity matrix")
	// ErrEmbeddingUnavailable signals that the embedding model cannot be loaded or invoked.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
)

// NoIndex marks an InvalidInputError that is not tied to a single text.
const NoIndex = -1

// InvalidInputError wraps ErrInvalidInput with the offending text index.
type InvalidInputError struct {
	Index  int
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Index == NoIndex {
		return fmt.Sprintf("%s: %s", ErrInvalidInput.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: text %d: %s", ErrInvalidInput.Error(), e.Index, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// NewInvalidInput creates an invalid input error for the text at index.
// Use NoIndex for batch-level problems.
func NewInvalidInput(index int, reason string) error {
	return &InvalidInputError{Index: index, Reason: reason}
}

// BatchTooLargeError wraps ErrBatchTooLarge with the submitted size and the limit.
type BatchTooLargeError struct {
	Size  int
	Limit int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("%s: %d texts submitted, limit is %d", ErrBatchTooLarge.Error(), e.Size, e.Limit)
}

func (e *BatchTooLargeError) Unwrap() error { return ErrBatchTooLarge }

// NewBatchTooLarge creates a batch size error.
func NewBatchTooLarge(size, limit int) error {
	return &BatchTooLargeError{Size: size, Limit: limit}
}
