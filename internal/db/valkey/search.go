package valkey

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/recall/internal/db"
)

const vectorScoreField = "__vector_score"

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// The index must use the COSINE metric; distances come back converted to similarity.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.IndexName == "" {
		return nil, fmt.Errorf("%w: index name is required", db.ErrInvalidQuery)
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @vector $BLOB]", q.K)
	args := []string{q.IndexName, queryStr}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1), vectorScoreField)
		args = append(args, s.returnFields(q.ReturnFields)...)
	}

	args = append(args,
		"PARAMS", "2", "BLOB", db.VectorToBytes(q.Vector),
		"LIMIT", "0", strconv.Itoa(q.K),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
			err = fmt.Errorf("%w: %s", db.ErrIndexNotFound, q.IndexName)
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	res, err := parseKNNResult(raw, s.contentField)
	if err != nil {
		return nil, &db.Error{Op: db.OpDecode, Err: err}
	}

	kept := res.Entries[:0]
	for _, e := range res.Entries {
		if e.Score >= q.Threshold {
			kept = append(kept, e)
		}
	}
	res.Entries = kept
	return res, nil
}

// returnFields renames "content" to the hash field that holds it.
func (s *Store) returnFields(fields []string) []string {
	if s.contentField == "" || s.contentField == "content" {
		return fields
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		if f == "content" {
			f = s.contentField
		}
		out[i] = f
	}
	return out
}

func parseKNNResult(raw []rueidis.RedisMessage, contentField string) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("%w: parse total: %v", db.ErrMalformedOutput, err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		}

		scoreStr, ok := entry.Fields[vectorScoreField]
		if !ok {
			continue
		}
		d, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}
		entry.Score = db.DistanceToSimilarity(d)
		delete(entry.Fields, vectorScoreField)

		if contentField != "" && contentField != "content" {
			if v, ok := entry.Fields[contentField]; ok {
				entry.Fields["content"] = v
			}
		}

		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}
