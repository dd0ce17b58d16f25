package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/query"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
	"github.com/kailas-cloud/recall/internal/workspace"
)

const maxBodyBytes = 1 << 20

// MemorySearcher is the search use case as seen by the HTTP layer.
type MemorySearcher interface {
	Search(ctx context.Context, q query.Query) ([]result.Result, error)
	Status() searchuc.Status
	ProbeEmbedding(ctx context.Context) searchuc.EmbeddingProbe
	ProbeVector(ctx context.Context) bool
	ReadFile(ctx context.Context, ref workspace.FileRef) workspace.FileContent
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Defaults are applied to search requests that leave a parameter unset.
type Defaults struct {
	MaxResults int
	MinScore   *float64
}

// Server serves the recall HTTP API.
type Server struct {
	search   MemorySearcher
	health   HealthChecker
	defaults Defaults
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search MemorySearcher, health HealthChecker, defaults Defaults, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{search: search, health: health, defaults: defaults, logger: logger}
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/search", s.Search)
	r.Get("/status", s.Status)
	r.Get("/probe/embedding", s.ProbeEmbedding)
	r.Get("/probe/vector", s.ProbeVector)
	r.Post("/files/read", s.ReadFile)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	maxResults := s.defaults.MaxResults
	if req.MaxResults != nil {
		maxResults = *req.MaxResults
	}
	minScore := s.defaults.MinScore
	if req.MinScore != nil {
		minScore = req.MinScore
	}

	q, err := query.New(req.Query, maxResults, minScore, req.SessionKey)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	results, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]SearchResultItem, len(results))
	for i := range results {
		items[i] = searchResultToDTO(&results[i])
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: items})
}

// Status handles GET /status.
func (s *Server) Status(w http.ResponseWriter, _ *http.Request) {
	st := s.search.Status()

	stores := make([]StoreItem, len(st.Stores))
	for i, ss := range st.Stores {
		stores[i] = StoreItem{ID: ss.ID, Category: string(ss.Category), Driver: string(ss.Driver)}
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Backend:         st.BackendName,
		Provider:        st.ProviderName,
		Model:           st.Model,
		StorageLocation: st.StorageLocation,
		Vector:          VectorStatus{Enabled: st.Vector.Enabled, Available: st.Vector.Available},
		Stores:          stores,
	})
}

// ProbeEmbedding handles GET /probe/embedding.
func (s *Server) ProbeEmbedding(w http.ResponseWriter, r *http.Request) {
	p := s.search.ProbeEmbedding(r.Context())
	writeJSON(w, http.StatusOK, ProbeResponse{OK: p.OK, Error: p.Error})
}

// ProbeVector handles GET /probe/vector.
func (s *Server) ProbeVector(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{OK: s.search.ProbeVector(r.Context())})
}

// ReadFile handles POST /files/read.
func (s *Server) ReadFile(w http.ResponseWriter, r *http.Request) {
	var req ReadFileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Ref == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "ref is required")
		return
	}
	if req.From < 0 || req.Lines < 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "from and lines must not be negative")
		return
	}

	fc := s.search.ReadFile(r.Context(), workspace.FileRef{Ref: req.Ref, From: req.From, Lines: req.Lines})
	writeJSON(w, http.StatusOK, ReadFileResponse{Text: fc.Text, Path: fc.Path, Found: fc.Found})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn("request context done", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, ErrorCodeInternalError, "request canceled")
	default:
		log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
	}
}

func searchResultToDTO(r *result.Result) SearchResultItem {
	return SearchResultItem{
		Path:      r.Path(),
		Score:     r.Score(),
		Snippet:   r.Snippet(),
		StartLine: r.StartLine(),
		EndLine:   r.EndLine(),
		Source:    string(r.Source()),
	}
}
