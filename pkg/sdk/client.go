package recall

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/query"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/engine"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
	"github.com/kailas-cloud/recall/internal/workspace"
)

// searchUseCase is the engine surface the Client needs; tests substitute it.
type searchUseCase interface {
	Search(ctx context.Context, q query.Query) ([]result.Result, error)
	Status() searchuc.Status
	ProbeEmbedding(ctx context.Context) searchuc.EmbeddingProbe
	ProbeVector(ctx context.Context) bool
	ReadFile(ctx context.Context, ref workspace.FileRef) workspace.FileContent
}

// Client is the recall SDK entry point.
type Client struct {
	closer     io.Closer
	searchSvc  searchUseCase
	healthSvc  healthUseCase
	maxResults int
	minScore   float64
	obs        *observer
}

// New builds the engine and opens every configured store.
// A store that cannot be constructed fails New; stores that are merely
// unreachable surface later as missing results and in Health.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}
	if cc.err != nil {
		return nil, fmt.Errorf("recall: %w: %w", domain.ErrInvalidConfig, cc.err)
	}

	cfg := cc.cfg
	cfg.ApplyDefaults()
	if err := cfg.ValidateEngine(); err != nil {
		return nil, fmt.Errorf("recall: %w: %w", domain.ErrInvalidConfig, err)
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	logger := cc.zapLogger
	if logger == nil {
		logger = zap.NewNop()
	}
	var engOpts []engine.Option
	if cc.embedder != nil {
		engOpts = append(engOpts, engine.WithEmbedder(&embedderAdapter{inner: cc.embedder}, providerCustom, cc.model))
	}

	eng, err := engine.Build(ctx, &cfg, logger, engOpts...)
	if err != nil {
		return nil, fmt.Errorf("recall: %w", err)
	}

	return &Client{
		closer:     eng,
		searchSvc:  eng.Search,
		healthSvc:  eng.Health,
		maxResults: cfg.Search.DefaultMaxResults,
		minScore:   *cfg.Search.DefaultMinScore,
		obs:        obs,
	}, nil
}

// Close releases all store connections.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Search returns the records most similar to text across every store,
// best first. An unavailable embedding provider yields an empty slice and no
// error; the only errors are invalid parameters and a context that was
// already done.
func (c *Client) Search(ctx context.Context, text string, opts ...SearchOption) (results []Result, err error) {
	start := time.Now()
	defer func() { c.obs.observeSearch(ctx, start, len(results), err) }()

	so := searchOptions{maxResults: c.maxResults, minScore: &c.minScore}
	for _, o := range opts {
		o(&so)
	}
	q, err := query.New(text, so.maxResults, so.minScore, so.sessionKey)
	if err != nil {
		return nil, err
	}

	found, err := c.searchSvc.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	results = make([]Result, len(found))
	for i, r := range found {
		results[i] = Result{
			Path:      r.Path(),
			Score:     r.Score(),
			Snippet:   r.Snippet(),
			StartLine: r.StartLine(),
			EndLine:   r.EndLine(),
			Source:    Category(r.Source()),
		}
	}
	return results, nil
}

// Status describes the backend. It does no I/O.
func (c *Client) Status() Status {
	st := c.searchSvc.Status()
	stores := make([]StoreInfo, len(st.Stores))
	for i, s := range st.Stores {
		stores[i] = StoreInfo{ID: s.ID, Category: Category(s.Category), Driver: string(s.Driver)}
	}
	return Status{
		Backend:         st.BackendName,
		Provider:        st.ProviderName,
		Model:           st.Model,
		StorageLocation: st.StorageLocation,
		VectorEnabled:   st.Vector.Enabled,
		VectorAvailable: st.Vector.Available,
		Stores:          stores,
	}
}

// ProbeEmbedding asks the embedding provider for a trivial vector.
func (c *Client) ProbeEmbedding(ctx context.Context) EmbeddingProbe {
	start := time.Now()
	p := c.searchSvc.ProbeEmbedding(ctx)
	var err error
	if !p.OK {
		err = fmt.Errorf("%w: %s", domain.ErrEmbeddingUnavailable, p.Error)
	}
	c.obs.observe(ctx, opEmbeddingCheck, start, err)
	return EmbeddingProbe{OK: p.OK, Error: p.Error}
}

// ProbeVector reports whether at least one store answers.
func (c *Client) ProbeVector(ctx context.Context) bool {
	start := time.Now()
	ok := c.searchSvc.ProbeVector(ctx)
	var err error
	if !ok {
		err = fmt.Errorf("%w: no store answered", domain.ErrStoreQueryFailed)
	}
	c.obs.observe(ctx, opVectorCheck, start, err)
	return ok
}

// ReadFile reads a workspace file or a window of its lines.
func (c *Client) ReadFile(ctx context.Context, ref FileRef) FileContent {
	fc := c.searchSvc.ReadFile(ctx, workspace.FileRef{Ref: ref.Path, From: ref.From, Lines: ref.Lines})
	return FileContent{Text: fc.Text, Path: fc.Path, Found: fc.Found}
}
