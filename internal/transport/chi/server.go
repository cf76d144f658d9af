// Package chi is the HTTP transport: routes, request decoding and error mapping.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simcheck/internal/domain"
	domanalysis "github.com/kailas-cloud/simcheck/internal/domain/analysis"
	domusage "github.com/kailas-cloud/simcheck/internal/domain/usage"
	"github.com/kailas-cloud/simcheck/internal/logger"
	analysisuc "github.com/kailas-cloud/simcheck/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/simcheck/internal/usecase/health"
	usageuc "github.com/kailas-cloud/simcheck/internal/usecase/usage"
)

// DefaultMaxBodyBytes caps the /analyze request body.
const DefaultMaxBodyBytes int64 = 4 << 20

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest             = "bad_request"
	CodeInvalidInput           = "invalid_input"
	CodeBatchTooLarge          = "batch_too_large"
	CodeDimensionMismatch      = "dimension_mismatch"
	CodeInvalidMatrix          = "invalid_matrix"
	CodeEmbeddingUnavailable   = "embedding_unavailable"
	CodeEmbeddingQuotaExceeded = "embedding_quota_exceeded"
	CodeUnauthorized           = "unauthorized"
	CodeTimeout                = "timeout"
	CodeCanceled               = "canceled"
	CodeInternalError          = "internal_error"
)

// statusClientClosedRequest is the nginx convention for a client that went away.
const statusClientClosedRequest = 499

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Index   *int   `json:"index,omitempty"`
	Limit   *int   `json:"limit,omitempty"`
}

// AnalyzeRequest is the POST /analyze body.
type AnalyzeRequest struct {
	Texts []string `json:"texts"`
}

// AnalyzeResponse is the POST /analyze result.
type AnalyzeResponse struct {
	Matrix domanalysis.Matrix      `json:"matrix"`
	Clones []domanalysis.ClonePair `json:"clones"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// UsageResponse is the GET /usage body.
type UsageResponse struct {
	Period        string       `json:"period"`
	Provider      string       `json:"provider"`
	PeriodStartAt *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time   `json:"period_end_at,omitempty"`
	Usage         UsageMetrics `json:"usage"`
	Budget        BudgetStatus `json:"budget"`
}

// UsageMetrics reports consumption within the period.
type UsageMetrics struct {
	Texts  int `json:"texts"`
	Tokens int `json:"tokens"`
}

// BudgetStatus reports the token budget. Limit fields are omitted when unlimited.
type BudgetStatus struct {
	TokensLimit     *int       `json:"tokens_limit,omitempty"`
	TokensRemaining *int       `json:"tokens_remaining,omitempty"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the HTTP API.
type Server struct {
	analysis      *analysisuc.Service
	usage         *usageuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	maxBodyBytes  int64
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	analysis *analysisuc.Service,
	usage *usageuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		analysis:     analysis,
		usage:        usage,
		health:       health,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	s.errorHandlers = []errorHandler{
		invalidInputHandler,
		batchTooLargeHandler,
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusInternalServerError, CodeDimensionMismatch),
		sentinelHandler(domain.ErrInvalidMatrix, http.StatusInternalServerError, CodeInvalidMatrix),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusTooManyRequests, CodeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, CodeEmbeddingUnavailable),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout),
		sentinelHandler(context.Canceled, statusClientClosedRequest, CodeCanceled),
	}
	return s
}

// WithMaxBodyBytes overrides the request body limit.
func (s *Server) WithMaxBodyBytes(n int64) *Server {
	if n > 0 {
		s.maxBodyBytes = n
	}
	return s
}

// Analyze handles POST /analyze.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	var threshold *float64
	if err := runtime.BindQueryParameter("form", true, false, "threshold", r.URL.Query(), &threshold); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid threshold query parameter")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeBadRequest,
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var opts []analysisuc.Option
	if threshold != nil {
		opts = append(opts, analysisuc.OverrideThreshold(*threshold))
	}

	ctx, usage := domain.WithRequestUsage(r.Context())
	result, err := s.analysis.Analyze(ctx, req.Texts, opts...)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	clones := result.Clones
	if clones == nil {
		clones = []domanalysis.ClonePair{}
	}

	setEmbeddingHeaders(w, usage.Snapshot())
	writeJSON(w, http.StatusOK, AnalyzeResponse{Matrix: result.Matrix, Clones: clones})
}

// GetUsage handles GET /usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	report := s.usage.GetReport(r.Context(), period)

	b := report.Budget()
	resp := UsageResponse{
		Period:   string(report.Period()),
		Provider: report.Provider(),
		Usage: UsageMetrics{
			Texts:  report.Metrics().Texts(),
			Tokens: report.Metrics().Tokens(),
		},
		Budget: BudgetStatus{IsExhausted: b.IsExhausted()},
	}

	if report.Bounded() {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}

	if !b.Unlimited() {
		limit, remaining := b.TokensLimit(), b.TokensRemaining()
		resp.Budget.TokensLimit = &limit
		resp.Budget.TokensRemaining = &remaining
		if b.ResetsAt() > 0 {
			resetsAt := time.UnixMilli(b.ResetsAt()).UTC()
			resp.Budget.ResetsAt = &resetsAt
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage domain.UsageSnapshot) {
	if usage.Embedded() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.Tokens))
		w.Header().Set("X-Embedding-Texts", strconv.Itoa(usage.Texts))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// invalidInputHandler reports the offending text index when there is one.
// The reason is user-facing, so the full message is returned.
func invalidInputHandler(w http.ResponseWriter, err error) bool {
	var iie *domain.InvalidInputError
	if !errors.As(err, &iie) {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, CodeInvalidInput, domain.ErrInvalidInput.Error())
			return true
		}
		return false
	}
	resp := ErrorResponse{Code: CodeInvalidInput, Message: iie.Error()}
	if iie.Index != domain.NoIndex {
		idx := iie.Index
		resp.Index = &idx
	}
	writeJSON(w, http.StatusBadRequest, resp)
	return true
}

func batchTooLargeHandler(w http.ResponseWriter, err error) bool {
	var btl *domain.BatchTooLargeError
	if !errors.As(err, &btl) {
		return false
	}
	limit := btl.Limit
	writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
		Code:    CodeBatchTooLarge,
		Message: btl.Error(),
		Limit:   &limit,
	})
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Only the sentinel text reaches the client.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
