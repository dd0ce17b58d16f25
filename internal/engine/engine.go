// Package engine assembles the memory search services from configuration.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/config"
	"github.com/kailas-cloud/recall/internal/db"
	dbChromem "github.com/kailas-cloud/recall/internal/db/chromem"
	dbOpenSearch "github.com/kailas-cloud/recall/internal/db/opensearch"
	dbS3Vectors "github.com/kailas-cloud/recall/internal/db/s3vectors"
	dbSQLite "github.com/kailas-cloud/recall/internal/db/sqlite"
	dbSubprocess "github.com/kailas-cloud/recall/internal/db/subprocess"
	dbValkey "github.com/kailas-cloud/recall/internal/db/valkey"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/store"
	"github.com/kailas-cloud/recall/internal/repository/storequery"
	bedrockEmb "github.com/kailas-cloud/recall/internal/transport/bedrock"
	openaiEmb "github.com/kailas-cloud/recall/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/recall/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
	"github.com/kailas-cloud/recall/internal/workspace"
)

// BackendName identifies this engine in status reports.
const BackendName = "builtin"

// Engine owns the store drivers and the services built on them.
type Engine struct {
	Search    *searchuc.Service
	Health    *healthuc.Service
	Workspace *workspace.Resolver
	stores    *storequery.Executor
}

// Option customizes Build.
type Option func(*options)

type options struct {
	embedder domain.Embedder
	provider string
	model    string
}

// WithEmbedder replaces the configured embedding provider. The embedder is still
// wrapped with the configured timeout and metrics.
func WithEmbedder(e domain.Embedder, provider, model string) Option {
	return func(o *options) {
		o.embedder = e
		o.provider = provider
		o.model = model
	}
}

// Build opens every configured store and wires the services.
// Any store that cannot be constructed fails the whole build.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ws, err := workspace.NewResolver(cfg.Workspace.Root)
	if err != nil {
		return nil, err
	}

	embedder, emb, err := buildEmbedder(ctx, &cfg.Embedding, &o, logger)
	if err != nil {
		return nil, err
	}

	bindings := make([]storequery.Binding, 0, len(cfg.Stores))
	closeAll := func() {
		for _, b := range bindings {
			_ = b.Store.Close()
		}
	}
	for i := range cfg.Stores {
		sc := &cfg.Stores[i]
		d, derr := sc.Descriptor()
		if derr != nil {
			closeAll()
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, derr)
		}
		s, oerr := OpenStore(ctx, sc, ws)
		if oerr != nil {
			closeAll()
			return nil, fmt.Errorf("open store %s: %w", d.ID(), oerr)
		}
		bindings = append(bindings, storequery.Binding{Descriptor: d, Index: sc.Index, Store: s})
	}

	exec, err := storequery.New(bindings, logger)
	if err != nil {
		closeAll()
		return nil, err
	}

	searchSvc := searchuc.New(exec, embedder, ws, searchuc.Options{
		Timeout:             time.Duration(cfg.Search.TimeoutMs) * time.Millisecond,
		BackendName:         BackendName,
		ProviderName:        emb.provider,
		Model:               emb.model,
		StorageLocation:     ws.Root(),
		EmbeddingConfigured: emb.configured,
	}, logger)

	var checker healthuc.EmbeddingChecker
	if emb.configured {
		checker = embedder
	}

	logger.Info("Memory search engine ready",
		zap.String("provider", emb.provider),
		zap.String("model", emb.model),
		zap.Bool("embedding_configured", emb.configured),
		zap.Int("stores", len(bindings)),
		zap.String("workspace", ws.Root()),
	)

	return &Engine{
		Search:    searchSvc,
		Health:    healthuc.New(exec, checker),
		Workspace: ws,
		stores:    exec,
	}, nil
}

// WaitForStores blocks until every remote store answers a ping or timeout expires.
func (e *Engine) WaitForStores(ctx context.Context, timeout time.Duration) error {
	if e.stores == nil {
		return nil
	}
	return e.stores.WaitForReady(ctx, timeout)
}

// Close releases every store driver.
func (e *Engine) Close() error {
	if e.stores == nil {
		return nil
	}
	return e.stores.Close()
}

type embeddingInfo struct {
	provider   string
	model      string
	configured bool
}

func buildEmbedder(
	ctx context.Context, cfg *config.EmbeddingConfig, o *options, logger *zap.Logger,
) (*embeddinguc.InstrumentedEmbedder, embeddingInfo, error) {
	var (
		base domain.Embedder
		info = embeddingInfo{provider: cfg.Provider, model: cfg.Model}
	)

	switch {
	case o.embedder != nil:
		base = o.embedder
		info = embeddingInfo{provider: o.provider, model: o.model, configured: true}
	case cfg.Provider == config.ProviderOpenAI:
		oe := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			User:       cfg.OpenAI.User,
			Provider:   config.ProviderOpenAI,
			Logger:     logger,
		})
		base = oe
		info.configured = oe.Available()
	case cfg.Provider == config.ProviderBedrock:
		be, err := bedrockEmb.NewEmbedder(ctx, &bedrockEmb.Config{
			AWS:        cfg.Bedrock,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Logger:     logger,
		})
		if err != nil {
			return nil, info, fmt.Errorf("create bedrock embedder: %w", err)
		}
		base = be
		info.model = be.Model()
		info.configured = true
	default:
		base = domain.UnavailableEmbedder{Reason: "no embedding provider configured"}
	}

	return embeddinguc.NewInstrumentedEmbedder(base, info.provider, info.model, embeddinguc.Options{
		Timeout:    time.Duration(cfg.TimeoutMs) * time.Millisecond,
		Dimensions: cfg.Dimensions,
	}, logger), info, nil
}

// OpenStore constructs the driver for one store declaration.
// Relative paths resolve against the workspace root.
func OpenStore(ctx context.Context, sc *config.StoreConfig, ws *workspace.Resolver) (db.Store, error) {
	switch store.Driver(sc.Driver) {
	case store.DriverSQLite:
		return dbSQLite.NewStore(dbSQLite.Config{Path: ws.Resolve(sc.Path)})
	case store.DriverSubprocess:
		return dbSubprocess.NewStore(dbSubprocess.Config{
			Command: sc.Subprocess.Command,
			Args:    sc.Subprocess.Args,
			DBPath:  ws.Resolve(sc.Path),
			Env:     sc.Subprocess.Env,
		})
	case store.DriverValkey, store.DriverRedis:
		return dbValkey.NewStore(dbValkey.Config{
			Addrs:        sc.Valkey.Addrs,
			Username:     sc.Valkey.Username,
			Password:     sc.Valkey.Password,
			DB:           sc.Valkey.DB,
			ContentField: sc.Valkey.ContentField,
		})
	case store.DriverChromem:
		return dbChromem.NewStore(dbChromem.Config{Path: ws.Resolve(sc.Path), Compress: sc.Chromem.Compress})
	case store.DriverOpenSearch:
		return dbOpenSearch.NewStore(ctx, dbOpenSearch.Config{
			Addresses:   sc.OpenSearch.Addresses,
			Username:    sc.OpenSearch.Username,
			Password:    sc.OpenSearch.Password,
			VectorField: sc.OpenSearch.VectorField,
			ScoreSpace:  sc.OpenSearch.ScoreSpace,
			AWS:         sc.OpenSearch.AWS,
		})
	case store.DriverS3Vectors:
		return dbS3Vectors.NewStore(ctx, dbS3Vectors.Config{Bucket: sc.S3Vectors.Bucket, AWS: sc.S3Vectors.AWS})
	default:
		return nil, errors.New("unknown driver " + sc.Driver)
	}
}
