package recall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Client operations as they appear in the "operation" label and in logs.
const (
	opSearch         = "search"
	opEmbeddingCheck = "embedding_check"
	opVectorCheck    = "vector_check"
	opHealth         = "health"
)

// Operation outcomes. A search with no results is "empty", which is also
// what an unreachable embedding provider looks like from the outside.
const (
	outcomeOK    = "ok"
	outcomeEmpty = "empty"
	outcomeError = "error"
)

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	results    prometheus.Histogram
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Client operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recall",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "Client operation latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}, []string{"operation"}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "recall",
			Subsystem: "sdk",
			Name:      "search_results",
			Help:      "Results returned per search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.results); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse lets several clients share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("recall: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("recall: metric already registered as %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer records client operations. A nil observer records nothing.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(ctx context.Context, op string, start time.Time, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	o.record(ctx, op, outcome, time.Since(start), err, slog.String("operation", op))
}

func (o *observer) observeSearch(ctx context.Context, start time.Time, results int, err error) {
	if o == nil {
		return
	}
	outcome := outcomeOK
	switch {
	case err != nil:
		outcome = outcomeError
	case results == 0:
		outcome = outcomeEmpty
	}
	if o.metrics != nil && err == nil {
		o.metrics.results.Observe(float64(results))
	}
	o.record(ctx, opSearch, outcome, time.Since(start), err,
		slog.String("operation", opSearch), slog.Int("results", results))
}

func (o *observer) record(ctx context.Context, op, outcome string, elapsed time.Duration, err error, attrs ...slog.Attr) {
	if o == nil {
		return
	}
	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, outcome).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}
	attrs = append(attrs, slog.String("outcome", outcome), slog.Duration("elapsed", elapsed))
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "recall operation failed", append(attrs, slog.Any("error", err))...)
		return
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, "recall operation done", attrs...)
}
