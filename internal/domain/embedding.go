package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// UnavailableEmbedder stands in when no provider is configured.
// Every call fails with ErrEmbeddingUnavailable without doing I/O.
type UnavailableEmbedder struct {
	Reason string
}

// Embed always reports unavailability.
func (e UnavailableEmbedder) Embed(context.Context, string) (EmbeddingResult, error) {
	return EmbeddingResult{}, e.err()
}

// HealthCheck always reports unavailability.
func (e UnavailableEmbedder) HealthCheck(context.Context) error {
	return e.err()
}

func (e UnavailableEmbedder) err() error {
	if e.Reason == "" {
		return ErrEmbeddingUnavailable
	}
	return fmt.Errorf("%w: %s", ErrEmbeddingUnavailable, e.Reason)
}
