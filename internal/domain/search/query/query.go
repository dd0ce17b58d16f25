package query

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/recall/internal/domain"
)

// Query limits and defaults.
const (
	// MaxTextLength is the maximum allowed query text length in bytes.
	MaxTextLength     = 4096
	DefaultMaxResults = 10
	MaxMaxResults     = 100
	DefaultMinScore   = 0.3
)

// Query is a validated memory search request (immutable value object).
type Query struct {
	text       string
	maxResults int
	minScore   float64
	sessionKey string
}

// New validates and normalizes search parameters.
// maxResults <= 0 selects DefaultMaxResults; a nil minScore selects DefaultMinScore.
func New(text string, maxResults int, minScore *float64, sessionKey string) (Query, error) {
	if strings.TrimSpace(text) == "" {
		return Query{}, fmt.Errorf("%w: query text is required", domain.ErrInvalidQuery)
	}
	if len(text) > MaxTextLength {
		return Query{}, fmt.Errorf("%w: query too long (max %d bytes)", domain.ErrInvalidQuery, MaxTextLength)
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > MaxMaxResults {
		return Query{}, fmt.Errorf("%w: max_results must be at most %d", domain.ErrInvalidQuery, MaxMaxResults)
	}
	score := DefaultMinScore
	if minScore != nil {
		score = *minScore
	}
	if math.IsNaN(score) || score < -1 || score > 1 {
		return Query{}, fmt.Errorf("%w: min_score must be between -1 and 1", domain.ErrInvalidQuery)
	}

	return Query{
		text:       text,
		maxResults: maxResults,
		minScore:   score,
		sessionKey: sessionKey,
	}, nil
}

// Text returns the free-text query.
func (q Query) Text() string { return q.text }

// MaxResults returns the upper bound on returned results.
func (q Query) MaxResults() int { return q.maxResults }

// MinScore returns the inclusive score threshold.
func (q Query) MinScore() float64 { return q.minScore }

// SessionKey returns the caller session, empty when not scoped.
func (q Query) SessionKey() string { return q.sessionKey }
