package chromem

import (
	"context"
	"errors"
	"fmt"

	chromem "github.com/philippgille/chromem-go"

	"github.com/kailas-cloud/recall/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// errNoEmbedFunc keeps chromem from falling back to its default remote embedder.
var errNoEmbedFunc = errors.New("chromem: documents and queries must carry embeddings")

func noEmbed(context.Context, string) ([]float32, error) { return nil, errNoEmbedFunc }

// Config holds the on-disk location of the embedded vector database.
// An empty Path keeps everything in memory.
type Config struct {
	Path     string
	Compress bool
}

// Store wraps a chromem-go database; each collection is one searchable index.
type Store struct {
	db *chromem.DB
}

// NewStore opens or creates the database.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return &Store{db: chromem.NewDB()}, nil
	}
	d, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}
	return &Store{db: d}, nil
}

// Ping always succeeds once the database is open.
func (s *Store) Ping(context.Context) error {
	if s.db == nil {
		return &db.Error{Op: db.OpPing, Err: errors.New("database not open")}
	}
	return nil
}

// Close is a no-op; persistent writes are flushed per document.
func (s *Store) Close() error { return nil }

// SearchKNN queries a collection by embedding. K is clamped to the collection size.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	col := s.db.GetCollection(q.IndexName, noEmbed)
	if col == nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: %q", db.ErrIndexNotFound, q.IndexName)}
	}

	n := min(q.K, col.Count())
	if n == 0 {
		return &db.SearchResult{}, nil
	}

	results, err := col.QueryEmbedding(ctx, q.Vector, n, nil, nil)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	entries := make([]db.SearchEntry, 0, len(results))
	for _, r := range results {
		sim := float64(r.Similarity)
		if sim < q.Threshold {
			continue
		}
		fields := make(map[string]string, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			fields[k] = v
		}
		fields["content"] = r.Content
		if _, ok := fields["id"]; !ok {
			fields["id"] = r.ID
		}
		entries = append(entries, db.SearchEntry{Key: r.ID, Score: sim, Fields: fields})
	}
	return &db.SearchResult{Total: len(results), Entries: entries}, nil
}
