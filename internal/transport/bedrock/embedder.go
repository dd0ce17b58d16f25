package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/awsconf"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// DefaultModel is Titan Text Embeddings v2.
const DefaultModel = "amazon.titan-embed-text-v2:0"

// Compile-time checks.
var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// InvokeAPI is the subset of the Bedrock runtime client the embedder uses.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Config holds the Bedrock embedding settings.
type Config struct {
	AWS        awsconf.Credentials
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

// Embedder calls Titan embedding models through InvokeModel.
type Embedder struct {
	api        InvokeAPI
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewEmbedder loads AWS configuration from explicit credentials and builds the runtime client.
func NewEmbedder(ctx context.Context, cfg *Config) (*Embedder, error) {
	awsCfg, err := awsconf.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	return NewEmbedderWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewEmbedderWithAPI wires a prebuilt runtime client.
func NewEmbedderWithAPI(api InvokeAPI, cfg *Config) *Embedder {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{api: api, model: model, dimensions: cfg.Dimensions, logger: logger}
}

// Provider returns the provider label.
func (e *Embedder) Provider() string { return "bedrock" }

// Model returns the model id.
func (e *Embedder) Model() string { return e.model }

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	body, err := json.Marshal(titanRequest{InputText: text, Dimensions: e.dimensions, Normalize: true})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("marshal request: %w: %w", err, domain.ErrEmbeddingUnavailable)
	}

	start := time.Now()
	out, err := e.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("bedrock", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("bedrock", e.model, "api_error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("invoke model: %w: %w", err, domain.ErrEmbeddingUnavailable)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil || len(resp.Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues("bedrock", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("bedrock", e.model, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("malformed embedding response: %w", domain.ErrEmbeddingUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("bedrock", e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("bedrock", e.model).Observe(duration.Seconds())
	if resp.InputTextTokenCount > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues("bedrock", e.model, "prompt").Add(float64(resp.InputTextTokenCount))
	}

	return domain.EmbeddingResult{
		Embedding:    resp.Embedding,
		PromptTokens: resp.InputTextTokenCount,
		TotalTokens:  resp.InputTextTokenCount,
	}, nil
}

// HealthCheck embeds a fixed probe word; the runtime API has no free listing endpoint.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	_, err := e.Embed(ctx, "health")
	return err
}
