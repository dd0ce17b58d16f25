package recall

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/awsconf"
	"github.com/kailas-cloud/recall/internal/config"
	"github.com/kailas-cloud/recall/internal/domain/store"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg        config.Config
	err        error
	embedder   Embedder
	model      string
	logger     *slog.Logger
	zapLogger  *zap.Logger
	metricsReg prometheus.Registerer
}

// WithConfigFile loads engine settings from a recall YAML config.
// HTTP and auth sections are ignored. Options applied after it override the file.
func WithConfigFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			c.err = fmt.Errorf("read config %s: %w", path, err)
			return
		}
		cfg, err := config.ParseEngine(data)
		if err != nil {
			c.err = err
			return
		}
		c.cfg = cfg
	})
}

// WithWorkspace sets the directory relative store paths and file reads resolve against.
func WithWorkspace(root string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Workspace.Root = root
	})
}

// WithSQLiteStore adds a store backed by a local SQLite vector table.
// The table name is the category, except memory which reads system_docs.
func WithSQLiteStore(id string, category Category, path string) Option {
	return addStore(config.StoreConfig{
		ID:       id,
		Category: string(category),
		Driver:   string(store.DriverSQLite),
		Path:     path,
	})
}

// WithSubprocessStore adds a store queried by running an external program
// that speaks the recall-localdb search protocol.
func WithSubprocessStore(id string, category Category, dbPath, command string, args ...string) Option {
	return addStore(config.StoreConfig{
		ID:       id,
		Category: string(category),
		Driver:   string(store.DriverSubprocess),
		Path:     dbPath,
		Subprocess: config.SubprocessConfig{
			Command: command,
			Args:    args,
		},
	})
}

// WithValkeyStore adds a store backed by a Valkey search index.
// An empty index defaults to the category.
func WithValkeyStore(id string, category Category, index string, addrs []string, password string) Option {
	return addStore(config.StoreConfig{
		ID:       id,
		Category: string(category),
		Driver:   string(store.DriverValkey),
		Index:    index,
		Valkey: config.ValkeyConfig{
			Addrs:    addrs,
			Password: password,
		},
	})
}

// WithChromemStore adds a store backed by an embedded chromem-go database.
// An empty dir keeps the collection in memory.
func WithChromemStore(id string, category Category, dir string) Option {
	return addStore(config.StoreConfig{
		ID:       id,
		Category: string(category),
		Driver:   string(store.DriverChromem),
		Path:     dir,
	})
}

func addStore(sc config.StoreConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Stores = append(c.cfg.Stores, sc)
	})
}

// WithOpenAI embeds queries with an OpenAI-compatible API.
// An empty apiKey leaves embedding unavailable rather than failing New.
func WithOpenAI(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Provider = config.ProviderOpenAI
		c.cfg.Embedding.Model = model
		c.cfg.Embedding.OpenAI = config.OpenAIConfig{APIKey: apiKey, BaseURL: baseURL}
	})
}

// WithBedrock embeds queries with an AWS Bedrock Titan model using the
// default credential chain of the given region.
func WithBedrock(region, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Provider = config.ProviderBedrock
		c.cfg.Embedding.Model = model
		c.cfg.Embedding.Bedrock = awsconf.Credentials{Region: region}
	})
}

// WithEmbedder supplies a custom embedding implementation.
// It takes precedence over WithOpenAI, WithBedrock and the config file.
func WithEmbedder(e Embedder, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.model = model
	})
}

// WithDimensions sets the expected query vector length. Zero disables the check.
func WithDimensions(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Dimensions = n
	})
}

// WithSearchTimeout bounds a whole Search call.
func WithSearchTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Search.TimeoutMs = int(d.Milliseconds())
	})
}

// WithEmbeddingTimeout bounds the embedding step of a Search call.
func WithEmbeddingTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.TimeoutMs = int(d.Milliseconds())
	})
}

// WithDefaults sets the limits used when Search is called without
// WithMaxResults or WithMinScore.
func WithDefaults(maxResults int, minScore float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Search.DefaultMaxResults = maxResults
		c.cfg.Search.DefaultMinScore = &minScore
	})
}

// WithLogger sets a structured logger for SDK operations.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithZapLogger sets the logger used by the engine for store and embedding warnings.
func WithZapLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.zapLogger = l
	})
}

// WithPrometheus enables SDK metrics registered with the given registerer.
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// SearchOption overrides per-call search parameters.
type SearchOption func(*searchOptions)

type searchOptions struct {
	maxResults int
	minScore   *float64
	sessionKey string
}

// WithMaxResults caps the number of returned results (1..100).
func WithMaxResults(n int) SearchOption {
	return func(o *searchOptions) { o.maxResults = n }
}

// WithMinScore drops results scoring below s (-1..1).
func WithMinScore(s float64) SearchOption {
	return func(o *searchOptions) { o.minScore = &s }
}

// WithSessionKey tags the search with the caller's session.
func WithSessionKey(key string) SearchOption {
	return func(o *searchOptions) { o.sessionKey = key }
}
