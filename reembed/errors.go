package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrResetFailed means the collection could not be cleared, so no
	// document was re-embedded.
	ErrResetFailed = errors.New("vector collection reset failed")

	// ErrBatchFailed means a document batch could not be embedded or stored.
	// The collection then holds only the batches before it.
	ErrBatchFailed = errors.New("document batch failed")
)
