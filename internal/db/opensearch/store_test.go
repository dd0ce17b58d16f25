package opensearch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/recall/internal/db"
)

func TestScoreSpaceRoundTrip(t *testing.T) {
	for _, space := range []string{SpaceCosineSimil, SpaceLuceneCosine} {
		s := &Store{space: space}
		for _, cos := range []float64{-1, -0.2, 0, 0.3, 0.75, 1} {
			got := s.toCosine(s.fromCosine(cos))
			if math.Abs(got-cos) > 1e-9 {
				t.Errorf("%s: round trip %f -> %f", space, cos, got)
			}
		}
	}
}

func TestBuildBody(t *testing.T) {
	s := &Store{vectorField: "embedding", space: SpaceCosineSimil}
	body := s.buildBody(&db.KNNQuery{Vector: []float32{0.5}, K: 4, Threshold: 0})

	if body["size"] != 4 {
		t.Errorf("size = %v", body["size"])
	}
	knn := body["query"].(map[string]any)["knn"].(map[string]any)["embedding"].(map[string]any)
	if knn["k"] != 4 {
		t.Errorf("k = %v", knn["k"])
	}
	// threshold 0 in cosinesimil space is _score 0.5
	if body["min_score"] != 0.5 {
		t.Errorf("min_score = %v", body["min_score"])
	}
}

func TestNewStore_Validation(t *testing.T) {
	if _, err := NewStore(context.Background(), Config{}); err == nil {
		t.Error("expected error for empty addresses")
	}
	_, err := NewStore(context.Background(), Config{Addresses: []string{"http://x"}, ScoreSpace: "l2"})
	if err == nil {
		t.Error("expected error for unknown score space")
	}
}

func TestSearchKNN_HTTP(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docs/_search" {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"took": 3, "timed_out": false,
			"_shards": {"total": 1, "successful": 1, "skipped": 0, "failed": 0},
			"hits": {
				"total": {"value": 2, "relation": "eq"},
				"max_score": 1.0,
				"hits": [
					{"_index": "docs", "_id": "d1", "_score": 1.0,
					 "_source": {"file_path": "docs/setup.md", "content": "install steps", "start_line": 3}},
					{"_index": "docs", "_id": "d2", "_score": 0.55,
					 "_source": {"file_path": "docs/misc.md", "content": "misc"}}
				]
			}
		}`)
	}))
	defer srv.Close()

	s, err := NewStore(context.Background(), Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "docs", Vector: []float32{0.1, 0.2}, K: 2, Threshold: 0.3,
	})
	if err != nil {
		t.Fatalf("SearchKNN: %v", err)
	}
	if gotBody == nil || gotBody["size"] != float64(2) {
		t.Errorf("unexpected request body: %v", gotBody)
	}
	// _score 0.55 maps to cos ~0.18, below threshold
	if len(res.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(res.Entries))
	}
	e := res.Entries[0]
	if e.Key != "d1" || math.Abs(e.Score-1) > 1e-6 {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Fields["file_path"] != "docs/setup.md" || e.Fields["start_line"] != "3" {
		t.Errorf("unexpected fields: %v", e.Fields)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{vectorField: "embedding", space: SpaceCosineSimil}
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{Vector: []float32{1}, K: 1})
	if !errors.Is(err, db.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}
