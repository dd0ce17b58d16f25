package storequery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/match"
	"github.com/kailas-cloud/recall/internal/domain/store"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// Binding attaches a store driver to its descriptor.
type Binding struct {
	Descriptor store.Descriptor
	// Index is the table, collection or index name inside the store.
	Index string
	Store db.Store
}

// Executor runs single-store queries and turns every driver failure into *Error.
type Executor struct {
	bindings map[string]Binding
	order    []store.Descriptor
	logger   *zap.Logger
}

// New creates an executor. Store ids must be unique.
func New(bindings []Binding, logger *zap.Logger) (*Executor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		bindings: make(map[string]Binding, len(bindings)),
		order:    make([]store.Descriptor, 0, len(bindings)),
		logger:   logger,
	}
	for _, b := range bindings {
		id := b.Descriptor.ID()
		if b.Store == nil {
			return nil, fmt.Errorf("%w: store %s has no driver", domain.ErrInvalidConfig, id)
		}
		if _, dup := e.bindings[id]; dup {
			return nil, fmt.Errorf("%w: duplicate store id %q", domain.ErrInvalidConfig, id)
		}
		if b.Index == "" {
			b.Index = string(b.Descriptor.Category())
		}
		e.bindings[id] = b
		e.order = append(e.order, b.Descriptor)
	}
	return e, nil
}

// Stores returns the configured descriptors in declaration order.
func (e *Executor) Stores() []store.Descriptor {
	out := make([]store.Descriptor, len(e.order))
	copy(out, e.order)
	return out
}

// Query asks one store for up to limit records with similarity >= threshold.
func (e *Executor) Query(
	ctx context.Context, storeID string, vector []float32, limit int, threshold float64,
) (matches []match.Raw, err error) {
	b, ok := e.bindings[storeID]
	if !ok {
		return nil, &Error{StoreID: storeID, Reason: ReasonUnknownStore, Err: domain.ErrUnknownStore}
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			matches = nil
			err = &Error{StoreID: storeID, Reason: ReasonTransport, Err: fmt.Errorf("driver panic: %v", r)}
		}
		e.observe(b.Descriptor, start, err)
	}()

	sr, qerr := b.Store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    b.Index,
		Vector:       vector,
		K:            limit,
		Threshold:    threshold,
		ReturnFields: b.Descriptor.Category().RecordFields(),
	})
	if qerr != nil {
		return nil, &Error{StoreID: storeID, Reason: classify(qerr), Err: qerr}
	}
	if sr == nil {
		return nil, nil
	}

	matches = make([]match.Raw, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		matches = append(matches, match.Raw{Key: entry.Key, Score: entry.Score, Fields: entry.Fields})
	}
	return matches, nil
}

// Ping checks connectivity of one store.
func (e *Executor) Ping(ctx context.Context, storeID string) error {
	b, ok := e.bindings[storeID]
	if !ok {
		return &Error{StoreID: storeID, Reason: ReasonUnknownStore, Err: domain.ErrUnknownStore}
	}
	if err := b.Store.Ping(ctx); err != nil {
		return &Error{StoreID: storeID, Reason: classify(err), Err: err}
	}
	return nil
}

// WaitForReady pings every remote store until it answers or timeout expires.
// Stores are waited on concurrently; the result joins one *Error per store that never came up.
func (e *Executor) WaitForReady(ctx context.Context, timeout time.Duration) error {
	errs := make([]error, len(e.order))
	var g errgroup.Group
	for i, d := range e.order {
		if !d.Driver().Remote() {
			continue
		}
		b := e.bindings[d.ID()]
		g.Go(func() error {
			if err := db.WaitForReady(ctx, b.Store, timeout); err != nil {
				errs[i] = &Error{StoreID: d.ID(), Reason: classify(err), Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Close closes every store driver.
func (e *Executor) Close() error {
	var errs []error
	for _, d := range e.order {
		if err := e.bindings[d.ID()].Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store %s: %w", d.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) observe(d store.Descriptor, start time.Time, err error) {
	metrics.StoreQueryDuration.WithLabelValues(d.ID()).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		var qe *Error
		if errors.As(err, &qe) {
			status = string(qe.Reason)
		} else {
			status = string(ReasonTransport)
		}
		e.logger.Warn("store query failed",
			zap.String("store", d.ID()),
			zap.String("category", string(d.Category())),
			zap.String("reason", status),
			zap.Error(err),
		)
	}
	metrics.StoreQueriesTotal.WithLabelValues(d.ID(), string(d.Category()), status).Inc()
}
