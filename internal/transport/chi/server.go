// Package chi serves the ops endpoints over a chi router.
package chi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/resdomain/internal/metrics"
	healthuc "github.com/kailas-cloud/resdomain/internal/usecase/health"
)

// Error codes returned in error bodies.
const (
	codeUnauthorized = "unauthorized"
	codeInternal     = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// TypeLister lists the entity types the process can persist.
type TypeLister interface {
	Types() []string
}

// Server serves the ops endpoints.
type Server struct {
	health HealthChecker
	types  TypeLister
	logger *zap.Logger
}

// NewServer creates an ops server.
func NewServer(health HealthChecker, types TypeLister, logger *zap.Logger) *Server {
	return &Server{health: health, types: types, logger: logger}
}

// Router builds the ops router. apiKeys protects everything but /healthz;
// empty disables authentication.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/v1/entity-types", s.entityTypes)
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

type entityTypesResponse struct {
	Items []string `json:"items"`
}

func (s *Server) entityTypes(w http.ResponseWriter, _ *http.Request) {
	types := s.types.Types()
	if types == nil {
		types = []string{}
	}
	writeJSON(w, http.StatusOK, entityTypesResponse{Items: types})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
