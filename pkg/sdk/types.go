package recall

// Category is the kind of memory a store holds.
type Category string

// Category constants.
const (
	CategorySessions     Category = "sessions"
	CategoryCaseStudies  Category = "case_studies"
	CategoryProtocols    Category = "protocols"
	CategoryCapabilities Category = "capabilities"
	CategorySystemDocs   Category = "system_docs"
	CategoryMemory       Category = "memory"
)

// Result is one ranked search hit.
type Result struct {
	Path      string
	Score     float64
	Snippet   string
	StartLine int
	EndLine   int
	Source    Category
}

// Status describes the configured backend without doing I/O.
type Status struct {
	Backend         string
	Provider        string
	Model           string
	StorageLocation string
	VectorEnabled   bool
	VectorAvailable bool
	Stores          []StoreInfo
}

// StoreInfo describes one configured store.
type StoreInfo struct {
	ID       string
	Category Category
	Driver   string
}

// EmbeddingProbe reports whether the embedding provider answered.
type EmbeddingProbe struct {
	OK    bool
	Error string
}

// FileRef addresses a workspace file, optionally a window of it.
// From is 1-based; zero values read the whole file.
type FileRef struct {
	Path  string
	From  int
	Lines int
}

// FileContent is the text read for a FileRef. Found is false when the
// file is missing, outside the workspace or unreadable.
type FileContent struct {
	Text  string
	Path  string
	Found bool
}
