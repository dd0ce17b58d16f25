package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/recall/internal/domain/store"
)

// --- Mocks ---

type mockStores struct {
	ids  []string
	errs map[string]error
}

func (m *mockStores) Stores() []store.Descriptor {
	out := make([]store.Descriptor, 0, len(m.ids))
	for _, id := range m.ids {
		d, err := store.NewDescriptor(id, store.CategoryMemory, store.DriverSQLite)
		if err != nil {
			panic(err)
		}
		out = append(out, d)
	}
	return out
}

func (m *mockStores) Ping(_ context.Context, id string) error { return m.errs[id] }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

type hangingStores struct {
	mockStores
}

func (m *hangingStores) Ping(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockStores{ids: []string{"a", "b"}}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["store:a"] != CheckOK || r.Checks["store:b"] != CheckOK {
		t.Errorf("expected stores ok, got %v", r.Checks)
	}
	if r.Checks["embedding"] != CheckOK {
		t.Errorf("expected embedding %q, got %q", CheckOK, r.Checks["embedding"])
	}
}

func TestCheck_OneStoreDown(t *testing.T) {
	svc := New(&mockStores{
		ids:  []string{"a", "b"},
		errs: map[string]error{"a": errors.New("conn refused")},
	}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["store:a"] != CheckError {
		t.Errorf("expected store:a %q, got %q", CheckError, r.Checks["store:a"])
	}
	if r.Checks["store:b"] != CheckOK {
		t.Errorf("expected store:b %q, got %q", CheckOK, r.Checks["store:b"])
	}
}

func TestCheck_AllStoresDown(t *testing.T) {
	svc := New(&mockStores{
		ids:  []string{"a", "b"},
		errs: map[string]error{"a": errors.New("down"), "b": errors.New("down")},
	}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	svc := New(&mockStores{ids: []string{"a"}}, &mockEmbeddingChecker{err: errors.New("timeout")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["embedding"] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks["embedding"])
	}
}

func TestCheck_NoEmbedding(t *testing.T) {
	svc := New(&mockStores{ids: []string{"a"}}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("embedding check should be absent when embedding is nil")
	}
}

func TestCheck_NoStores(t *testing.T) {
	svc := New(&mockStores{}, &mockEmbeddingChecker{err: errors.New("fail")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if len(r.Checks) != 1 {
		t.Errorf("expected only the embedding check, got %v", r.Checks)
	}
}

func TestCheck_HangingStoreTimesOut(t *testing.T) {
	svc := New(&hangingStores{mockStores{ids: []string{"stuck"}}}, &mockEmbeddingChecker{})
	svc.timeout = 50 * time.Millisecond

	start := time.Now()
	r := svc.Check(context.Background())
	if time.Since(start) > 2*time.Second {
		t.Fatal("check should not wait past its timeout")
	}
	if r.Checks["store:stuck"] != CheckError {
		t.Errorf("expected hanging store to fail, got %v", r.Checks)
	}
	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["embedding"] != CheckOK {
		t.Errorf("expected embedding ok, got %v", r.Checks)
	}
}
