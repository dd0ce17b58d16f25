package domain

import "errors"

var (
	// ErrEmbeddingUnavailable signals that no query vector can be produced.
	// Callers treat it as "no semantic results", never as a hard failure.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrStoreQueryFailed signals a single backing store call that did not yield results.
	ErrStoreQueryFailed = errors.New("store query failed")
	// ErrUnknownStore signals a store id that is not configured.
	ErrUnknownStore = errors.New("unknown store")
	// ErrInvalidQuery signals a search query that failed validation.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidConfig signals a configuration that cannot be used to build the engine.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)
