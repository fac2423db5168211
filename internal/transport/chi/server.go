// Package chi exposes the run trigger over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/idxmigrate/internal/domain"
	"github.com/kailas-cloud/idxmigrate/internal/logger"
	healthuc "github.com/kailas-cloud/idxmigrate/internal/usecase/health"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest    = "bad_request"
	CodeUnauthorized  = "unauthorized"
	CodeConflict      = "conflict"
	CodeNotFound      = "not_found"
	CodeInternalError = "internal_error"
)

// RunController starts migration runs and reports on them.
type RunController interface {
	Run(ctx context.Context) (domain.RunSummary, error)
	Start(ctx context.Context) (string, error)
	Last() (domain.RunSummary, bool)
	Running() bool
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunAccepted is returned when a run was started in the background.
type RunAccepted struct {
	RunID string `json:"run_id"`
}

// RunResponse wraps a run summary with its folded outcome.
type RunResponse struct {
	domain.RunSummary
	Outcome domain.Outcome `json:"outcome"`
	Running bool           `json:"running"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Server implements the trigger HTTP API.
type Server struct {
	runs    RunController
	health  HealthChecker
	logger  *zap.Logger
	baseCtx context.Context
}

// NewServer creates a trigger server. Background runs are bound to
// context.Background until WithBaseContext sets the process context.
func NewServer(runs RunController, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{
		runs:    runs,
		health:  health,
		logger:  logger,
		baseCtx: context.Background(),
	}
}

// WithBaseContext sets the context background runs inherit, so that
// shutdown interrupts them.
func (s *Server) WithBaseContext(ctx context.Context) *Server {
	s.baseCtx = ctx
	return s
}

// Mount registers the trigger routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Post("/runs", s.StartRun)
	r.Get("/runs/last", s.LastRun)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
}

// StartRun handles POST /runs. With ?wait=true the run executes within the
// request and the summary is returned; otherwise it is started in the
// background and 202 is returned with its id.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	wait := r.URL.Query().Get("wait")
	switch wait {
	case "", "false":
		s.startBackground(w, r)
	case "true":
		s.runInline(w, r)
	default:
		writeError(w, http.StatusBadRequest, CodeBadRequest, "wait must be true or false")
	}
}

// runContext detaches a run from its request: it inherits the server base
// context and the request-scoped logger, never the request's cancellation.
func (s *Server) runContext(r *http.Request) context.Context {
	log := s.logger
	if reqID := chiMiddleware.GetReqID(r.Context()); reqID != "" {
		log = log.With(zap.String("request_id", reqID))
	}
	return logger.ContextWithLogger(s.baseCtx, log)
}

func (s *Server) startBackground(w http.ResponseWriter, r *http.Request) {
	id, err := s.runs.Start(s.runContext(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, RunAccepted{RunID: id})
}

func (s *Server) runInline(w http.ResponseWriter, r *http.Request) {
	// The run outlasts the server write timeout; the summary must still reach the client.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil &&
		!errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("clear write deadline", zap.Error(err))
	}
	sum, err := s.runs.Run(s.runContext(r))
	if errors.Is(err, domain.ErrRunInProgress) {
		s.handleError(w, r, err)
		return
	}
	// A run that aborted still produced a summary carrying the error.
	writeJSON(w, http.StatusOK, RunResponse{RunSummary: sum, Outcome: sum.Outcome()})
}

// LastRun handles GET /runs/last.
func (s *Server) LastRun(w http.ResponseWriter, _ *http.Request) {
	sum, ok := s.runs.Last()
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "no run has finished yet")
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{
		RunSummary: sum,
		Outcome:    sum.Outcome(),
		Running:    s.runs.Running(),
	})
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

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrRunInProgress) {
		writeError(w, http.StatusConflict, CodeConflict, domain.ErrRunInProgress.Error())
		return
	}
	s.logger.Error("internal error", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
