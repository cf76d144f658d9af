package simcheck

import "github.com/kailas-cloud/simcheck/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrBatchTooLarge          = domain.ErrBatchTooLarge
	ErrDimensionMismatch      = domain.ErrDimensionMismatch
	ErrInvalidMatrix          = domain.ErrInvalidMatrix
	ErrEmbeddingUnavailable   = domain.ErrEmbeddingUnavailable
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
)

// InvalidInputError carries the index of the offending text (NoIndex for batch-level problems).
// Use errors.As() to extract it.
type InvalidInputError = domain.InvalidInputError

// BatchTooLargeError carries the submitted size and the limit.
type BatchTooLargeError = domain.BatchTooLargeError

// NoIndex marks an InvalidInputError that is not tied to a single text.
const NoIndex = domain.NoIndex
