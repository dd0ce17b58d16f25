package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	opensearch "github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v4/signer/awsv2"

	"github.com/kailas-cloud/recall/internal/awsconf"
	"github.com/kailas-cloud/recall/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Score spaces: how the k-NN engine maps cosine similarity to _score.
const (
	// SpaceCosineSimil is the nmslib/faiss cosinesimil space: score = 1 / (2 - cos).
	SpaceCosineSimil = "cosinesimil"
	// SpaceLuceneCosine is the lucene engine cosine space: score = (1 + cos) / 2.
	SpaceLuceneCosine = "lucene_cosine"
)

// Config holds connection parameters for an OpenSearch k-NN index.
type Config struct {
	Addresses   []string
	Username    string
	Password    string
	VectorField string
	ScoreSpace  string
	// AWS enables SigV4 request signing for Amazon OpenSearch Service.
	AWS *awsconf.Credentials
}

// Store queries k-NN indexes over the OpenSearch REST API.
type Store struct {
	client      *opensearchapi.Client
	vectorField string
	space       string
}

// NewStore creates an OpenSearch client.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("addresses is required")
	}
	if cfg.VectorField == "" {
		cfg.VectorField = "embedding"
	}
	switch cfg.ScoreSpace {
	case "":
		cfg.ScoreSpace = SpaceCosineSimil
	case SpaceCosineSimil, SpaceLuceneCosine:
	default:
		return nil, fmt.Errorf("unknown score space %q", cfg.ScoreSpace)
	}

	osCfg := opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	if cfg.AWS != nil {
		awsCfg, err := awsconf.Load(ctx, *cfg.AWS)
		if err != nil {
			return nil, &db.Error{Op: db.OpOpen, Err: err}
		}
		signer, err := requestsigner.NewSignerWithService(awsCfg, "es")
		if err != nil {
			return nil, &db.Error{Op: db.OpOpen, Err: fmt.Errorf("create AWS signer: %w", err)}
		}
		osCfg.Signer = signer
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{Client: osCfg})
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}

	return &Store{client: client, vectorField: cfg.VectorField, space: cfg.ScoreSpace}, nil
}

// Ping checks cluster health.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.Cluster.Health(ctx, &opensearchapi.ClusterHealthReq{}); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close is a no-op; the HTTP transport is shared.
func (s *Store) Close() error { return nil }

// SearchKNN runs a knn query and converts _score back to cosine similarity.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.IndexName == "" {
		return nil, fmt.Errorf("%w: index name is required", db.ErrInvalidQuery)
	}

	body, err := json.Marshal(s.buildBody(q))
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	resp, err := s.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{q.IndexName},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		if strings.Contains(err.Error(), "index_not_found_exception") {
			err = fmt.Errorf("%w: %s", db.ErrIndexNotFound, q.IndexName)
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	if resp == nil {
		return nil, &db.Error{Op: db.OpDecode, Err: db.ErrMalformedOutput}
	}

	entries := make([]db.SearchEntry, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var src map[string]any
		if len(hit.Source) > 0 {
			if err := json.Unmarshal(hit.Source, &src); err != nil {
				continue
			}
		}
		sim := s.toCosine(float64(hit.Score))
		if sim < q.Threshold {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    hit.ID,
			Score:  sim,
			Fields: db.FlattenFields(src, s.vectorField),
		})
	}
	return &db.SearchResult{Total: resp.Hits.Total.Value, Entries: entries}, nil
}

func (s *Store) buildBody(q *db.KNNQuery) map[string]any {
	body := map[string]any{
		"size": q.K,
		"query": map[string]any{
			"knn": map[string]any{
				s.vectorField: map[string]any{
					"vector": q.Vector,
					"k":      q.K,
				},
			},
		},
		"_source": map[string]any{"excludes": []string{s.vectorField}},
	}
	if ms := s.fromCosine(q.Threshold); ms > 0 {
		body["min_score"] = ms
	}
	return body
}

func (s *Store) toCosine(score float64) float64 {
	if s.space == SpaceLuceneCosine {
		return 2*score - 1
	}
	if score <= 0 {
		return -1
	}
	return 2 - 1/score
}

func (s *Store) fromCosine(cos float64) float64 {
	if s.space == SpaceLuceneCosine {
		return (1 + cos) / 2
	}
	return 1 / (2 - cos)
}
