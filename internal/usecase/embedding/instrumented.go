package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// InstrumentedEmbedder wraps an Embedder with its own timeout, vector validation and logging.
// Every failure leaves this layer as domain.ErrEmbeddingUnavailable.
// Transport metrics (requests, duration, tokens) are recorded by the providers.
type InstrumentedEmbedder struct {
	inner      domain.Embedder
	provider   string
	model      string
	timeout    time.Duration
	dimensions int
	logger     *zap.Logger
}

// Options tune the instrumented embedder.
type Options struct {
	// Timeout bounds a single embedding call; 0 leaves the caller's deadline alone.
	Timeout time.Duration
	// Dimensions, when positive, is the exact vector length expected from the provider.
	Dimensions int
}

// NewInstrumentedEmbedder wraps an embedder with timeout and observability.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	opts Options, logger *zap.Logger,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:      inner,
		provider:   provider,
		model:      model,
		timeout:    opts.Timeout,
		dimensions: opts.Dimensions,
		logger:     logger,
	}
}

// Provider returns the provider label.
func (p *InstrumentedEmbedder) Provider() string { return p.provider }

// Model returns the model name.
func (p *InstrumentedEmbedder) Model() string { return p.model }

// Embed delegates to the inner embedder under the embedding timeout and validates the vector.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err == nil {
		err = p.validate(result.Embedding)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, errorType(err)).Inc()
		p.logger.Warn("Embedding unavailable",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// HealthCheck probes the inner provider under the embedding timeout.
// Providers without a dedicated check are probed with a one-word embedding.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("health check: %w", err)
		}
		return nil
	}
	_, err := p.Embed(ctx, "ping")
	return err
}

func (p *InstrumentedEmbedder) validate(vec []float32) error {
	if len(vec) == 0 {
		return errors.New("empty vector")
	}
	if p.dimensions > 0 && len(vec) != p.dimensions {
		return fmt.Errorf("%w: got %d, want %d", domain.ErrVectorDimMismatch, len(vec), p.dimensions)
	}
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.New("vector contains non-finite values")
		}
	}
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrVectorDimMismatch):
		return "dimension_mismatch"
	default:
		return "unavailable"
	}
}
