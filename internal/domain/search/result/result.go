package result

import "github.com/kailas-cloud/recall/internal/domain/store"

// Result is a single normalized memory hit.
type Result struct {
	path      string
	score     float64
	snippet   string
	startLine int
	endLine   int
	source    store.Category
}

// New creates a search result. Line bounds outside 1 <= start <= end collapse to (1, 1).
func New(path string, score float64, snippet string, startLine, endLine int, source store.Category) Result {
	if startLine < 1 || endLine < startLine {
		startLine, endLine = 1, 1
	}
	return Result{
		path: path, score: score, snippet: snippet,
		startLine: startLine, endLine: endLine, source: source,
	}
}

// Path returns the identifier of the originating document.
func (r Result) Path() string { return r.path }

// Score returns the similarity score.
func (r Result) Score() float64 { return r.score }

// Snippet returns the matched text.
func (r Result) Snippet() string { return r.snippet }

// StartLine returns the first line of the snippet (1-based).
func (r Result) StartLine() int { return r.startLine }

// EndLine returns the last line of the snippet (1-based, inclusive).
func (r Result) EndLine() int { return r.endLine }

// Source returns the category of the store that produced the hit.
func (r Result) Source() store.Category { return r.source }
