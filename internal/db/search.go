package db

import "fmt"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	// IndexName selects the table, collection or index inside the store.
	IndexName string
	Vector    []float32
	K         int
	// Threshold is the inclusive minimum cosine similarity a hit must reach.
	Threshold float64
	// ReturnFields limits what a driver fetches per hit. Drivers that read whole records ignore it.
	ReturnFields []string
}

// Validate checks the fields every driver depends on.
func (q *KNNQuery) Validate() error {
	if q == nil {
		return fmt.Errorf("%w: query is nil", ErrInvalidQuery)
	}
	if len(q.Vector) == 0 {
		return fmt.Errorf("%w: vector is required", ErrInvalidQuery)
	}
	if q.K <= 0 {
		return fmt.Errorf("%w: k must be positive", ErrInvalidQuery)
	}
	return nil
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Score is cosine similarity; drivers backed by a distance metric convert before returning.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
