package health

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain/store"
)

// StorePinger checks backing store availability.
type StorePinger interface {
	Stores() []store.Descriptor
	Ping(ctx context.Context, storeID string) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
