package recall

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/recall/internal/domain/search/query"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/domain/store"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
	"github.com/kailas-cloud/recall/internal/workspace"
)

type mockSearchUC struct {
	searchFn   func(ctx context.Context, q query.Query) ([]result.Result, error)
	status     searchuc.Status
	probe      searchuc.EmbeddingProbe
	vector     bool
	readFileFn func(ref workspace.FileRef) workspace.FileContent
}

func (m *mockSearchUC) Search(ctx context.Context, q query.Query) ([]result.Result, error) {
	return m.searchFn(ctx, q)
}

func (m *mockSearchUC) Status() searchuc.Status { return m.status }

func (m *mockSearchUC) ProbeEmbedding(context.Context) searchuc.EmbeddingProbe { return m.probe }

func (m *mockSearchUC) ProbeVector(context.Context) bool { return m.vector }

func (m *mockSearchUC) ReadFile(_ context.Context, ref workspace.FileRef) workspace.FileContent {
	return m.readFileFn(ref)
}

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

func TestClient_Search_Defaults(t *testing.T) {
	var got query.Query
	mock := &mockSearchUC{
		searchFn: func(_ context.Context, q query.Query) ([]result.Result, error) {
			got = q
			return []result.Result{
				result.New("protocols/deploy.md", 0.82, "roll back first", 4, 12, store.CategoryProtocols),
			}, nil
		},
	}
	c := &Client{searchSvc: mock, maxResults: 6, minScore: 0.25}

	res, err := c.Search(context.Background(), "deploy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MaxResults() != 6 || got.MinScore() != 0.25 {
		t.Errorf("query = (%d, %g), want (6, 0.25)", got.MaxResults(), got.MinScore())
	}
	want := Result{
		Path: "protocols/deploy.md", Score: 0.82, Snippet: "roll back first",
		StartLine: 4, EndLine: 12, Source: CategoryProtocols,
	}
	if len(res) != 1 || res[0] != want {
		t.Errorf("results = %+v, want [%+v]", res, want)
	}
}

func TestClient_Search_Overrides(t *testing.T) {
	var got query.Query
	mock := &mockSearchUC{
		searchFn: func(_ context.Context, q query.Query) ([]result.Result, error) {
			got = q
			return []result.Result{}, nil
		},
	}
	c := &Client{searchSvc: mock, maxResults: 6, minScore: 0.25}

	res, err := c.Search(context.Background(), "deploy",
		WithMaxResults(2), WithMinScore(-0.5), WithSessionKey("agent:main"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || len(res) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", res)
	}
	if got.MaxResults() != 2 || got.MinScore() != -0.5 || got.SessionKey() != "agent:main" {
		t.Errorf("unexpected query: max=%d min=%g key=%q", got.MaxResults(), got.MinScore(), got.SessionKey())
	}
}

func TestClient_Search_InvalidQuery(t *testing.T) {
	mock := &mockSearchUC{
		searchFn: func(context.Context, query.Query) ([]result.Result, error) {
			t.Fatal("search must not be called")
			return nil, nil
		},
	}
	c := &Client{searchSvc: mock, maxResults: 10, minScore: 0.3}

	tests := []struct {
		name string
		text string
		opts []SearchOption
	}{
		{"empty text", "  ", nil},
		{"too many results", "q", []SearchOption{WithMaxResults(101)}},
		{"score out of range", "q", []SearchOption{WithMinScore(1.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Search(context.Background(), tt.text, tt.opts...)
			if !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got %v", err)
			}
		})
	}
}

func TestClient_Search_Error(t *testing.T) {
	mock := &mockSearchUC{
		searchFn: func(context.Context, query.Query) ([]result.Result, error) {
			return nil, context.Canceled
		},
	}
	c := &Client{searchSvc: mock, maxResults: 10, minScore: 0.3}

	if _, err := c.Search(context.Background(), "q"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClient_Status(t *testing.T) {
	mock := &mockSearchUC{status: searchuc.Status{
		BackendName:     "builtin",
		ProviderName:    "openai",
		Model:           "text-embedding-3-small",
		StorageLocation: "/srv/agent",
		Vector:          searchuc.VectorStatus{Enabled: true, Available: false},
		Stores: []searchuc.StoreStatus{
			{ID: "sessions", Category: store.CategorySessions, Driver: store.DriverSQLite},
		},
	}}
	c := &Client{searchSvc: mock}

	st := c.Status()
	if st.Backend != "builtin" || st.Provider != "openai" || st.StorageLocation != "/srv/agent" {
		t.Errorf("unexpected status: %+v", st)
	}
	if !st.VectorEnabled || st.VectorAvailable {
		t.Errorf("vector = (%v, %v), want (true, false)", st.VectorEnabled, st.VectorAvailable)
	}
	want := StoreInfo{ID: "sessions", Category: CategorySessions, Driver: "sqlite"}
	if len(st.Stores) != 1 || st.Stores[0] != want {
		t.Errorf("stores = %+v", st.Stores)
	}
}

func TestClient_Probes(t *testing.T) {
	mock := &mockSearchUC{
		probe:  searchuc.EmbeddingProbe{OK: false, Error: "no embedding provider configured"},
		vector: true,
	}
	c := &Client{searchSvc: mock}

	p := c.ProbeEmbedding(context.Background())
	if p.OK || p.Error != "no embedding provider configured" {
		t.Errorf("unexpected probe: %+v", p)
	}
	if !c.ProbeVector(context.Background()) {
		t.Error("expected vector probe to pass")
	}
}

func TestClient_ReadFile(t *testing.T) {
	var got workspace.FileRef
	mock := &mockSearchUC{
		readFileFn: func(ref workspace.FileRef) workspace.FileContent {
			got = ref
			return workspace.FileContent{Text: "line 3\nline 4", Path: "/srv/agent/notes.md", Found: true}
		},
	}
	c := &Client{searchSvc: mock}

	fc := c.ReadFile(context.Background(), FileRef{Path: "notes.md", From: 3, Lines: 2})
	if got.Ref != "notes.md" || got.From != 3 || got.Lines != 2 {
		t.Errorf("unexpected ref: %+v", got)
	}
	if !fc.Found || fc.Text != "line 3\nline 4" || fc.Path != "/srv/agent/notes.md" {
		t.Errorf("unexpected content: %+v", fc)
	}
}

func TestClient_Health(t *testing.T) {
	mock := &mockHealthUC{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{
			"store:sessions": healthuc.CheckOK,
			"store:memory":   healthuc.CheckError,
		},
	}}
	c := &Client{healthSvc: mock}

	h := c.Health(context.Background())
	if h.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", h.Status)
	}
	if h.Checks["store:sessions"] != "ok" || h.Checks["store:memory"] != "error" {
		t.Errorf("unexpected checks: %+v", h.Checks)
	}
}

func TestClient_RecordsFailedChecks(t *testing.T) {
	obs, err := newObserver(nil, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	c := &Client{
		searchSvc: &mockSearchUC{vector: false},
		healthSvc: &mockHealthUC{report: healthuc.Report{Status: healthuc.Unhealthy}},
		obs:       obs,
	}

	if c.ProbeVector(context.Background()) {
		t.Error("expected no store to answer")
	}
	_ = c.Health(context.Background())

	for _, op := range []string{opVectorCheck, opHealth} {
		if v := testutil.ToFloat64(obs.metrics.operations.WithLabelValues(op, outcomeError)); v != 1 {
			t.Errorf("%s errors = %v, want 1", op, v)
		}
	}
}
