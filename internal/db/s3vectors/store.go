package s3vectors

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors/types"

	"github.com/kailas-cloud/recall/internal/awsconf"
	"github.com/kailas-cloud/recall/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// API is the subset of the S3 Vectors client the store uses.
type API interface {
	QueryVectors(ctx context.Context, in *s3vectors.QueryVectorsInput, optFns ...func(*s3vectors.Options)) (*s3vectors.QueryVectorsOutput, error)
	GetVectorBucket(ctx context.Context, in *s3vectors.GetVectorBucketInput, optFns ...func(*s3vectors.Options)) (*s3vectors.GetVectorBucketOutput, error)
}

// Config selects a vector bucket. Indexes inside it are addressed per query.
type Config struct {
	Bucket string
	AWS    awsconf.Credentials
}

// Store queries Amazon S3 Vectors indexes built with the cosine distance metric.
type Store struct {
	api    API
	bucket string
}

// NewStore creates an S3 Vectors client from explicit credentials.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	awsCfg, err := awsconf.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}
	return &Store{api: s3vectors.NewFromConfig(awsCfg), bucket: cfg.Bucket}, nil
}

// NewStoreWithAPI wires a prebuilt client.
func NewStoreWithAPI(api API, bucket string) *Store {
	return &Store{api: api, bucket: bucket}
}

// Ping checks that the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.GetVectorBucket(ctx, &s3vectors.GetVectorBucketInput{
		VectorBucketName: aws.String(s.bucket),
	})
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// SearchKNN runs QueryVectors and converts cosine distance to similarity.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.IndexName == "" {
		return nil, fmt.Errorf("%w: index name is required", db.ErrInvalidQuery)
	}

	out, err := s.api.QueryVectors(ctx, &s3vectors.QueryVectorsInput{
		VectorBucketName: aws.String(s.bucket),
		IndexName:        aws.String(q.IndexName),
		QueryVector:      &types.VectorDataMemberFloat32{Value: q.Vector},
		TopK:             aws.Int32(int32(q.K)), //nolint:gosec // K is bounded by the query limit
		ReturnDistance:   true,
		ReturnMetadata:   true,
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	entries := make([]db.SearchEntry, 0, len(out.Vectors))
	for _, v := range out.Vectors {
		if v.Key == nil || v.Distance == nil {
			continue
		}
		sim := db.DistanceToSimilarity(float64(*v.Distance))
		if sim < q.Threshold {
			continue
		}

		fields := map[string]string{}
		if v.Metadata != nil {
			var m map[string]any
			if err := v.Metadata.UnmarshalSmithyDocument(&m); err != nil {
				return nil, &db.Error{Op: db.OpDecode, Err: fmt.Errorf("%w: metadata of %s: %v", db.ErrMalformedOutput, *v.Key, err)}
			}
			fields = db.FlattenFields(m)
		}
		entries = append(entries, db.SearchEntry{Key: *v.Key, Score: sim, Fields: fields})
	}
	return &db.SearchResult{Total: len(out.Vectors), Entries: entries}, nil
}
