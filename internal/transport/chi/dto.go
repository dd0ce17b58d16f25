package chi

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query      string   `json:"query"`
	MaxResults *int     `json:"max_results,omitempty"`
	MinScore   *float64 `json:"min_score,omitempty"`
	SessionKey string   `json:"session_key,omitempty"`
}

// SearchResultItem is one ranked memory hit.
type SearchResultItem struct {
	Path      string  `json:"path"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Source    string  `json:"source"`
}

// SearchResponse is the body of a successful POST /search.
type SearchResponse struct {
	Results []SearchResultItem `json:"results"`
}

// VectorStatus mirrors the vector capability flags.
type VectorStatus struct {
	Enabled   bool `json:"enabled"`
	Available bool `json:"available"`
}

// StoreItem describes a configured store.
type StoreItem struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Driver   string `json:"driver"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Backend         string       `json:"backend"`
	Provider        string       `json:"provider"`
	Model           string       `json:"model,omitempty"`
	StorageLocation string       `json:"storage_location"`
	Vector          VectorStatus `json:"vector"`
	Stores          []StoreItem  `json:"stores"`
}

// ProbeResponse is the body of the probe endpoints.
type ProbeResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ReadFileRequest is the body of POST /files/read.
type ReadFileRequest struct {
	Ref   string `json:"ref"`
	From  int    `json:"from,omitempty"`
	Lines int    `json:"lines,omitempty"`
}

// ReadFileResponse is the body of a POST /files/read answer. Missing files are not errors.
type ReadFileResponse struct {
	Text  string `json:"text"`
	Path  string `json:"path"`
	Found bool   `json:"found"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
