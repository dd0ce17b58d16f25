package search

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/match"
	"github.com/kailas-cloud/recall/internal/domain/store"
	"github.com/kailas-cloud/recall/internal/workspace"
)

// StoreExecutor queries individual backing stores.
type StoreExecutor interface {
	Stores() []store.Descriptor
	Query(ctx context.Context, storeID string, vector []float32, limit int, threshold float64) ([]match.Raw, error)
	Ping(ctx context.Context, storeID string) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// FileReader serves ReadFile.
type FileReader interface {
	ReadFile(ref workspace.FileRef) workspace.FileContent
}
