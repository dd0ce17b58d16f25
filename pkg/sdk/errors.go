package recall

import "github.com/kailas-cloud/recall/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEmbeddingUnavailable = domain.ErrEmbeddingUnavailable
	ErrStoreQueryFailed     = domain.ErrStoreQueryFailed
	ErrUnknownStore         = domain.ErrUnknownStore
	ErrInvalidQuery         = domain.ErrInvalidQuery
	ErrInvalidConfig        = domain.ErrInvalidConfig
)
