package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates no store is reachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const embeddingCheck = "embedding"

// DefaultCheckTimeout bounds one round of health checks.
const DefaultCheckTimeout = 5 * time.Second

// Report aggregates health check results. Store checks are keyed "store:<id>".
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	stores    StorePinger
	embedding EmbeddingChecker
	timeout   time.Duration
}

// New creates a Service. embedding can be nil.
func New(stores StorePinger, embedding EmbeddingChecker) *Service {
	return &Service{stores: stores, embedding: embedding, timeout: DefaultCheckTimeout}
}

// Check runs health checks against all components concurrently.
// A check still running when the timeout expires counts as failed.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult)
		g      errgroup.Group
	)
	set := func(name string, err error) {
		res := CheckOK
		if err != nil {
			res = CheckError
		}
		mu.Lock()
		checks[name] = res
		mu.Unlock()
	}

	descriptors := s.stores.Stores()
	for _, d := range descriptors {
		g.Go(func() error {
			set("store:"+d.ID(), s.stores.Ping(ctx, d.ID()))
			return nil
		})
	}
	if s.embedding != nil {
		g.Go(func() error {
			set(embeddingCheck, s.embedding.HealthCheck(ctx))
			return nil
		})
	}
	_ = g.Wait()

	failedStores := 0
	status := Healthy
	for name, v := range checks {
		if v != CheckError {
			continue
		}
		status = Degraded
		if name != embeddingCheck {
			failedStores++
		}
	}
	if len(descriptors) > 0 && failedStores == len(descriptors) {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
