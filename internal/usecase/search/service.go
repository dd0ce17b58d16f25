package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/query"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/domain/store"
	"github.com/kailas-cloud/recall/internal/metrics"
	"github.com/kailas-cloud/recall/internal/workspace"
)

// DefaultTimeout bounds a whole search when Options.Timeout is unset.
const DefaultTimeout = 15 * time.Second

const probeText = "ping"

// Options is the static identity and limits of a Service.
type Options struct {
	Timeout         time.Duration
	BackendName     string
	ProviderName    string
	Model           string
	StorageLocation string
	// EmbeddingConfigured is false when no provider was set up.
	EmbeddingConfigured bool
}

// VectorStatus describes whether vector search is usable.
type VectorStatus struct {
	Enabled   bool
	Available bool
}

// StoreStatus describes one configured store.
type StoreStatus struct {
	ID       string
	Category store.Category
	Driver   store.Driver
}

// Status is a cheap description of the configured backend.
type Status struct {
	BackendName     string
	ProviderName    string
	Model           string
	StorageLocation string
	Vector          VectorStatus
	Stores          []StoreStatus
}

// EmbeddingProbe is the result of ProbeEmbedding.
type EmbeddingProbe struct {
	OK    bool
	Error string
}

// Service answers memory searches by fanning a query vector out to every configured store.
type Service struct {
	stores StoreExecutor
	embed  Embedder
	files  FileReader
	opts   Options
	order  []store.Descriptor
	logger *zap.Logger
}

// New creates a search service. files may be nil, in which case ReadFile never finds anything.
func New(stores StoreExecutor, embed Embedder, files FileReader, opts Options, logger *zap.Logger) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		stores: stores,
		embed:  embed,
		files:  files,
		opts:   opts,
		order:  stores.Stores(),
		logger: logger,
	}
}

// Search embeds the query once, queries every store concurrently and merges the answers.
// An unavailable embedding provider yields an empty list and no store calls.
// The only error is the caller's context being done before the search started.
func (s *Service) Search(ctx context.Context, q query.Query) ([]result.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	emb, err := s.embed.Embed(ctx, q.Text())
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
			s.logger.Warn("Embedding failed", zap.Error(err))
		}
		metrics.SearchRequestsTotal.WithLabelValues("no_embedding").Inc()
		metrics.SearchResultsReturned.Observe(0)
		return []result.Result{}, nil
	}

	outcomes := s.fanOut(ctx, emb.Embedding, q.MaxResults(), q.MinScore())
	results := Merge(outcomes, q.MaxResults(), q.MinScore())

	metrics.SearchRequestsTotal.WithLabelValues(outcomeLabel(outcomes)).Inc()
	metrics.SearchResultsReturned.Observe(float64(len(results)))
	s.logger.Debug("Memory search completed",
		zap.Int("stores", len(outcomes)),
		zap.Int("results", len(results)),
		zap.String("session", q.SessionKey()),
	)
	return results, nil
}

// fanOut runs one goroutine per store. Each writes only its own slot, so no locking is needed.
func (s *Service) fanOut(ctx context.Context, vector []float32, limit int, threshold float64) []Outcome {
	outcomes := make([]Outcome, len(s.order))
	var g errgroup.Group
	for i, d := range s.order {
		g.Go(func() error {
			matches, err := s.stores.Query(ctx, d.ID(), vector, limit, threshold)
			outcomes[i] = Outcome{Store: d, Matches: matches, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func outcomeLabel(outcomes []Outcome) string {
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	switch {
	case failed == 0:
		return "ok"
	case failed == len(outcomes):
		return "failed"
	default:
		return "partial"
	}
}

// Status describes the configuration without doing any I/O.
func (s *Service) Status() Status {
	stores := make([]StoreStatus, 0, len(s.order))
	for _, d := range s.order {
		stores = append(stores, StoreStatus{ID: d.ID(), Category: d.Category(), Driver: d.Driver()})
	}
	enabled := len(s.order) > 0
	return Status{
		BackendName:     s.opts.BackendName,
		ProviderName:    s.opts.ProviderName,
		Model:           s.opts.Model,
		StorageLocation: s.opts.StorageLocation,
		Vector: VectorStatus{
			Enabled:   enabled,
			Available: enabled && s.opts.EmbeddingConfigured,
		},
		Stores: stores,
	}
}

// ProbeEmbedding checks the provider with its health check, or a one-word embed.
func (s *Service) ProbeEmbedding(ctx context.Context) EmbeddingProbe {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var err error
	if hc, ok := s.embed.(domain.HealthChecker); ok {
		err = hc.HealthCheck(ctx)
	} else {
		_, err = s.embed.Embed(ctx, probeText)
	}
	if err != nil {
		return EmbeddingProbe{Error: err.Error()}
	}
	return EmbeddingProbe{OK: true}
}

// ProbeVector pings every store concurrently and reports whether any answered.
func (s *Service) ProbeVector(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	alive := make([]bool, len(s.order))
	var g errgroup.Group
	for i, d := range s.order {
		g.Go(func() error {
			alive[i] = s.stores.Ping(ctx, d.ID()) == nil
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range alive {
		if ok {
			return true
		}
	}
	return false
}

// ReadFile returns workspace file content, or Found=false.
func (s *Service) ReadFile(ctx context.Context, ref workspace.FileRef) workspace.FileContent {
	if s.files == nil || ctx.Err() != nil {
		return workspace.FileContent{Path: ref.Ref}
	}
	return s.files.ReadFile(ref)
}
