package search

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/recall/internal/domain/search/match"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/domain/store"
)

// Outcome is what one store contributed to a search.
type Outcome struct {
	Store   store.Descriptor
	Matches []match.Raw
	Err     error
}

const unknownPath = "unknown"

// Merge combines per-store outcomes, given in declaration order, into one ranked list.
// Failed stores contribute nothing. Records with a non-finite score or one outside [-1, 1]
// are dropped individually, as are records below minScore. Ties keep declaration order
// and then the order the store returned.
func Merge(outcomes []Outcome, maxResults int, minScore float64) []result.Result {
	merged := make([]result.Result, 0)
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		for _, m := range o.Matches {
			if !validScore(m.Score) || m.Score < minScore {
				continue
			}
			merged = append(merged, normalize(m, o.Store.Category()))
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score() > merged[j].Score()
	})

	if maxResults >= 0 && len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged
}

func validScore(s float64) bool {
	return !math.IsNaN(s) && !math.IsInf(s, 0) && s >= -1 && s <= 1
}

func normalize(m match.Raw, cat store.Category) result.Result {
	start, end := lineRange(m)
	return result.New(pathOf(m, cat), m.Score, m.Field(store.FieldContent), start, end, cat)
}

func pathOf(m match.Raw, cat store.Category) string {
	for _, name := range cat.PathFields() {
		if v := strings.TrimSpace(m.Field(name)); v != "" {
			return v
		}
	}
	if m.Key != "" {
		return m.Key
	}
	return unknownPath
}

// lineRange falls back to (1, 1) inside result.New when the fields are absent or inconsistent.
func lineRange(m match.Raw) (int, int) {
	start, err := strconv.Atoi(strings.TrimSpace(m.Field(store.FieldStartLine)))
	if err != nil {
		return 1, 1
	}
	end, err := strconv.Atoi(strings.TrimSpace(m.Field(store.FieldEndLine)))
	if err != nil {
		return 1, 1
	}
	return start, end
}
