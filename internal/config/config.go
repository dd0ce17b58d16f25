package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/recall/internal/awsconf"
	"github.com/kailas-cloud/recall/internal/domain/search/query"
	"github.com/kailas-cloud/recall/internal/domain/store"
)

// Config holds the recall service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Stores    []StoreConfig   `yaml:"stores"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// WorkspaceConfig locates the agent workspace. Relative store paths resolve against Root.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// Embedding provider names.
const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
	ProviderNone    = "none"
)

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Provider   string              `yaml:"provider"` // openai, bedrock, none
	Model      string              `yaml:"model"`
	Dimensions int                 `yaml:"dimensions"`
	TimeoutMs  int                 `yaml:"timeout_ms"`
	OpenAI     OpenAIConfig        `yaml:"openai"`
	Bedrock    awsconf.Credentials `yaml:"bedrock"`
}

// OpenAIConfig holds OpenAI-compatible API settings.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	User    string `yaml:"user"`
}

// SearchConfig holds query defaults and deadlines.
type SearchConfig struct {
	TimeoutMs         int      `yaml:"timeout_ms"`
	DefaultMaxResults int      `yaml:"default_max_results"`
	DefaultMinScore   *float64 `yaml:"default_min_score"`
	// ReadinessTimeoutSec bounds how long startup waits for remote stores to answer a ping.
	ReadinessTimeoutSec int `yaml:"readiness_timeout_sec"`
}

// StoreConfig declares one backing store. Declaration order is the result tie-break order.
type StoreConfig struct {
	ID         string           `yaml:"id"`
	Category   string           `yaml:"category"`
	Driver     string           `yaml:"driver"`
	Index      string           `yaml:"index"` // table, collection or index name inside the store
	Path       string           `yaml:"path"`  // sqlite file, subprocess database, chromem directory
	Subprocess SubprocessConfig `yaml:"subprocess"`
	Valkey     ValkeyConfig     `yaml:"valkey"`
	OpenSearch OpenSearchConfig `yaml:"opensearch"`
	S3Vectors  S3VectorsConfig  `yaml:"s3vectors"`
	Chromem    ChromemConfig    `yaml:"chromem"`
}

// SubprocessConfig describes an external search program.
type SubprocessConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// ValkeyConfig holds Valkey/Redis connection settings.
type ValkeyConfig struct {
	Addrs        []string `yaml:"addrs"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	DB           int      `yaml:"db"`
	ContentField string   `yaml:"content_field"`
}

// OpenSearchConfig holds OpenSearch connection settings.
type OpenSearchConfig struct {
	Addresses   []string             `yaml:"addresses"`
	Username    string               `yaml:"username"`
	Password    string               `yaml:"password"`
	VectorField string               `yaml:"vector_field"`
	ScoreSpace  string               `yaml:"score_space"`
	AWS         *awsconf.Credentials `yaml:"aws"`
}

// S3VectorsConfig holds Amazon S3 Vectors settings.
type S3VectorsConfig struct {
	Bucket string              `yaml:"bucket"`
	AWS    awsconf.Credentials `yaml:"aws"`
}

// ChromemConfig holds embedded vector database settings.
type ChromemConfig struct {
	Compress bool `yaml:"compress"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	return parse(data, (*Config).Validate)
}

// ParseEngine is Parse without the HTTP server checks, for embedded use.
func ParseEngine(data []byte) (Config, error) {
	return parse(data, (*Config).ValidateEngine)
}

func parse(data []byte, validate func(*Config) error) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Workspace.Root == "" {
		c.Workspace.Root = "."
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderNone
	}
	if c.Embedding.TimeoutMs <= 0 {
		c.Embedding.TimeoutMs = 5000
	}
	if c.Search.TimeoutMs <= 0 {
		c.Search.TimeoutMs = 15000
	}
	if c.Search.ReadinessTimeoutSec <= 0 {
		c.Search.ReadinessTimeoutSec = 10
	}
	if c.Search.DefaultMaxResults <= 0 {
		c.Search.DefaultMaxResults = query.DefaultMaxResults
	}
	if c.Search.DefaultMinScore == nil {
		v := query.DefaultMinScore
		c.Search.DefaultMinScore = &v
	}
	for i := range c.Stores {
		c.Stores[i].applyDefaults()
	}
}

func (s *StoreConfig) applyDefaults() {
	if s.Index != "" {
		return
	}
	local := s.Driver == string(store.DriverSQLite) || s.Driver == string(store.DriverSubprocess)
	if local && s.Category == string(store.CategoryMemory) {
		s.Index = "system_docs"
		return
	}
	s.Index = s.Category
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return c.ValidateEngine()
}

// ValidateEngine checks embedding, search and store settings.
func (c *Config) ValidateEngine() error {
	if err := c.Embedding.validate(); err != nil {
		return err
	}
	if c.Embedding.TimeoutMs > c.Search.TimeoutMs {
		return fmt.Errorf("embedding.timeout_ms (%d) must not exceed search.timeout_ms (%d)",
			c.Embedding.TimeoutMs, c.Search.TimeoutMs)
	}
	if c.Search.DefaultMaxResults > query.MaxMaxResults {
		return fmt.Errorf("search.default_max_results must be at most %d", query.MaxMaxResults)
	}
	if ms := *c.Search.DefaultMinScore; ms < -1 || ms > 1 {
		return fmt.Errorf("search.default_min_score must be between -1 and 1, got %g", ms)
	}
	if len(c.Stores) == 0 {
		return fmt.Errorf("at least one store is required")
	}
	seen := make(map[string]bool, len(c.Stores))
	for i, s := range c.Stores {
		if err := s.validate(); err != nil {
			return fmt.Errorf("stores[%d]: %w", i, err)
		}
		if seen[s.ID] {
			return fmt.Errorf("stores[%d]: duplicate store id %q", i, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

func (e *EmbeddingConfig) validate() error {
	switch e.Provider {
	case ProviderNone:
		return nil
	case ProviderOpenAI:
		if e.Model == "" {
			return fmt.Errorf("embedding.model is required for provider %q", e.Provider)
		}
	case ProviderBedrock:
		if err := e.Bedrock.Validate(); err != nil {
			return fmt.Errorf("embedding.bedrock: %w", err)
		}
	default:
		return fmt.Errorf("embedding.provider must be one of openai, bedrock, none, got %q", e.Provider)
	}
	if e.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative")
	}
	return nil
}

// Descriptor builds the validated store descriptor.
func (s *StoreConfig) Descriptor() (store.Descriptor, error) {
	category, err := store.ParseCategory(s.Category)
	if err != nil {
		return store.Descriptor{}, err
	}
	driver, err := store.ParseDriver(s.Driver)
	if err != nil {
		return store.Descriptor{}, err
	}
	return store.NewDescriptor(s.ID, category, driver)
}

func (s *StoreConfig) validate() error {
	d, err := s.Descriptor()
	if err != nil {
		return err
	}
	switch d.Driver() {
	case store.DriverSQLite:
		if s.Path == "" {
			return fmt.Errorf("store %s: path is required", s.ID)
		}
	case store.DriverSubprocess:
		if s.Path == "" || s.Subprocess.Command == "" {
			return fmt.Errorf("store %s: path and subprocess.command are required", s.ID)
		}
	case store.DriverValkey, store.DriverRedis:
		if len(s.Valkey.Addrs) == 0 {
			return fmt.Errorf("store %s: valkey.addrs is required", s.ID)
		}
	case store.DriverOpenSearch:
		if len(s.OpenSearch.Addresses) == 0 {
			return fmt.Errorf("store %s: opensearch.addresses is required", s.ID)
		}
		if s.OpenSearch.AWS != nil {
			if err := s.OpenSearch.AWS.Validate(); err != nil {
				return fmt.Errorf("store %s: opensearch.aws: %w", s.ID, err)
			}
		}
	case store.DriverS3Vectors:
		if s.S3Vectors.Bucket == "" {
			return fmt.Errorf("store %s: s3vectors.bucket is required", s.ID)
		}
		if err := s.S3Vectors.AWS.Validate(); err != nil {
			return fmt.Errorf("store %s: s3vectors.aws: %w", s.ID, err)
		}
	case store.DriverChromem:
		// empty path keeps the collection in memory
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
