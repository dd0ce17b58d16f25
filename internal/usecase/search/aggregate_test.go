package search

import (
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/recall/internal/domain/search/match"
	"github.com/kailas-cloud/recall/internal/domain/store"
)

func mustDescriptor(t *testing.T, id string, cat store.Category) store.Descriptor {
	t.Helper()
	d, err := store.NewDescriptor(id, cat, store.DriverSQLite)
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	return d
}

func raws(keyPrefix string, scores ...float64) []match.Raw {
	out := make([]match.Raw, 0, len(scores))
	for i, s := range scores {
		out = append(out, match.Raw{Key: keyPrefix + string(rune('a'+i)), Score: s})
	}
	return out
}

func scoresOf(t *testing.T, outcomes []Outcome, maxResults int, minScore float64) []float64 {
	t.Helper()
	res := Merge(outcomes, maxResults, minScore)
	out := make([]float64, 0, len(res))
	for _, r := range res {
		out = append(out, r.Score())
	}
	return out
}

func equalScores(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMerge_PartialFailure(t *testing.T) {
	outcomes := []Outcome{
		{Store: mustDescriptor(t, "s1", store.CategorySessions), Matches: raws("s1", 0.9, 0.5, 0.2)},
		{Store: mustDescriptor(t, "s2", store.CategoryMemory), Err: errors.New("down")},
		{Store: mustDescriptor(t, "s3", store.CategorySystemDocs), Matches: raws("s3", 0.7)},
	}

	got := scoresOf(t, outcomes, 2, 0.3)
	if !equalScores(got, []float64{0.9, 0.7}) {
		t.Errorf("expected [0.9 0.7], got %v", got)
	}
}

func TestMerge_FewerThanMax(t *testing.T) {
	outcomes := []Outcome{
		{Store: mustDescriptor(t, "s1", store.CategorySessions), Matches: raws("s1", 0.4)},
		{Store: mustDescriptor(t, "s2", store.CategoryMemory), Matches: raws("s2", 0.8, 0.6)},
	}

	got := scoresOf(t, outcomes, 10, 0.3)
	if !equalScores(got, []float64{0.8, 0.6, 0.4}) {
		t.Errorf("expected [0.8 0.6 0.4], got %v", got)
	}
}

func TestMerge_TieBreakByDeclarationOrder(t *testing.T) {
	outcomes := []Outcome{
		{Store: mustDescriptor(t, "first", store.CategorySessions), Matches: []match.Raw{{Key: "x", Score: 0.5}}},
		{Store: mustDescriptor(t, "second", store.CategoryMemory), Matches: []match.Raw{{Key: "y", Score: 0.5}}},
	}

	res := Merge(outcomes, 10, 0.3)
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	if res[0].Source() != store.CategorySessions || res[1].Source() != store.CategoryMemory {
		t.Errorf("expected declaration order on ties, got %s then %s", res[0].Source(), res[1].Source())
	}
}

func TestMerge_TieKeepsStoreOrder(t *testing.T) {
	outcomes := []Outcome{
		{Store: mustDescriptor(t, "only", store.CategoryMemory), Matches: []match.Raw{
			{Key: "m3", Score: 0.5},
			{Key: "m1", Score: 0.5},
			{Key: "top", Score: 0.9},
			{Key: "m2", Score: 0.5},
		}},
	}

	res := Merge(outcomes, 10, 0.3)
	var got []string
	for _, r := range res {
		got = append(got, r.Path())
	}
	want := []string{"top", "m3", "m1", "m2"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	// truncation cuts the tail of the tie, not an arbitrary member
	res = Merge(outcomes, 2, 0.3)
	if len(res) != 2 || res[1].Path() != "m3" {
		t.Errorf("expected [top m3], got %v", res)
	}
}

func TestMerge_DropsDefects(t *testing.T) {
	outcomes := []Outcome{
		{Store: mustDescriptor(t, "s1", store.CategorySessions), Matches: raws("s1",
			math.NaN(), math.Inf(1), 1.5, -2, 0.6)},
	}

	got := scoresOf(t, outcomes, 10, -1)
	if !equalScores(got, []float64{0.6}) {
		t.Errorf("expected only the valid record, got %v", got)
	}
}

func TestMerge_MinScoreInclusive(t *testing.T) {
	outcomes := []Outcome{
		{Store: mustDescriptor(t, "s1", store.CategorySessions), Matches: raws("s1", 0.3, 0.29999)},
	}

	got := scoresOf(t, outcomes, 10, 0.3)
	if !equalScores(got, []float64{0.3}) {
		t.Errorf("expected [0.3], got %v", got)
	}
}

func TestMerge_Invariants(t *testing.T) {
	outcomes := []Outcome{
		{Store: mustDescriptor(t, "a", store.CategorySessions), Matches: raws("a", 0.31, 0.95, 0.4, 0.1)},
		{Store: mustDescriptor(t, "b", store.CategoryCaseStudies), Matches: raws("b", 0.77, 0.35, 0.99)},
		{Store: mustDescriptor(t, "c", store.CategoryProtocols), Matches: raws("c", 0.5, 0.5, 0.2)},
	}

	for maxResults := 0; maxResults <= 12; maxResults++ {
		res := Merge(outcomes, maxResults, 0.3)
		if len(res) > maxResults {
			t.Fatalf("max %d: got %d results", maxResults, len(res))
		}
		for i, r := range res {
			if r.Score() < 0.3 {
				t.Errorf("max %d: score %v below minScore", maxResults, r.Score())
			}
			if i > 0 && res[i-1].Score() < r.Score() {
				t.Errorf("max %d: scores not non-increasing at %d", maxResults, i)
			}
		}
	}
}

func TestMerge_Empty(t *testing.T) {
	res := Merge(nil, 10, 0.3)
	if res == nil || len(res) != 0 {
		t.Errorf("expected empty non-nil list, got %v", res)
	}
}

func TestMerge_PathResolution(t *testing.T) {
	tests := []struct {
		name   string
		cat    store.Category
		raw    match.Raw
		expect string
	}{
		{"file_path wins", store.CategorySessions, match.Raw{Key: "k", Fields: map[string]string{
			"file_path": "sessions/1.md", "path": "p", "title": "t"}}, "sessions/1.md"},
		{"path", store.CategoryMemory, match.Raw{Fields: map[string]string{"path": "MEMORY.md", "title": "t"}}, "MEMORY.md"},
		{"title", store.CategoryMemory, match.Raw{Fields: map[string]string{"title": "Notes"}}, "Notes"},
		{"session date", store.CategorySessions, match.Raw{Fields: map[string]string{"date": "2024-03-01"}}, "2024-03-01"},
		{"session number", store.CategorySessions, match.Raw{Fields: map[string]string{"session_number": "12"}}, "12"},
		{"case id", store.CategoryCaseStudies, match.Raw{Fields: map[string]string{"case_id": "CS-7"}}, "CS-7"},
		{"protocol id", store.CategoryProtocols, match.Raw{Fields: map[string]string{"protocol_id": "P1"}}, "P1"},
		{"capability name", store.CategoryCapabilities, match.Raw{Fields: map[string]string{"name": "search"}}, "search"},
		{"system doc", store.CategorySystemDocs, match.Raw{Fields: map[string]string{"filename": "AGENTS.md"}}, "AGENTS.md"},
		{"memory id", store.CategoryMemory, match.Raw{Fields: map[string]string{"id": "m-1"}}, "m-1"},
		{"category field ignored elsewhere", store.CategoryProtocols, match.Raw{Key: "key-1",
			Fields: map[string]string{"case_id": "CS-7"}}, "key-1"},
		{"blank value skipped", store.CategoryMemory, match.Raw{Key: "key-2",
			Fields: map[string]string{"file_path": "  "}}, "key-2"},
		{"unknown", store.CategoryMemory, match.Raw{}, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.raw.Score = 0.9
			res := Merge([]Outcome{{Store: mustDescriptor(t, "s", tt.cat), Matches: []match.Raw{tt.raw}}}, 10, 0)
			if len(res) != 1 {
				t.Fatalf("expected 1 result, got %d", len(res))
			}
			if res[0].Path() != tt.expect {
				t.Errorf("expected path %q, got %q", tt.expect, res[0].Path())
			}
		})
	}
}

func TestMerge_SnippetAndLines(t *testing.T) {
	raw := []match.Raw{
		{Key: "a", Score: 0.9, Fields: map[string]string{"content": "  body  ", "start_line": "3", "end_line": "8"}},
		{Key: "b", Score: 0.8, Fields: map[string]string{"start_line": "9", "end_line": "2"}},
		{Key: "c", Score: 0.7, Fields: map[string]string{"start_line": "x"}},
	}
	res := Merge([]Outcome{{Store: mustDescriptor(t, "s", store.CategoryMemory), Matches: raw}}, 10, 0)
	if len(res) != 3 {
		t.Fatalf("expected 3 results, got %d", len(res))
	}
	if res[0].Snippet() != "  body  " {
		t.Errorf("snippet should be verbatim, got %q", res[0].Snippet())
	}
	if res[0].StartLine() != 3 || res[0].EndLine() != 8 {
		t.Errorf("expected lines 3-8, got %d-%d", res[0].StartLine(), res[0].EndLine())
	}
	for _, r := range res[1:] {
		if r.StartLine() != 1 || r.EndLine() != 1 {
			t.Errorf("%s: expected (1,1), got (%d,%d)", r.Path(), r.StartLine(), r.EndLine())
		}
	}
	if res[0].Source() != store.CategoryMemory {
		t.Errorf("expected source memory, got %s", res[0].Source())
	}
}
