// Package server exposes the OMR job pipeline over HTTP for the surrounding
// school-management application.
package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eduscan/markscan/internal/grade"
	"github.com/eduscan/markscan/internal/jobs"
	"github.com/eduscan/markscan/internal/omr"
	"github.com/eduscan/markscan/internal/template"
)

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	UploadDir   string
	TimeoutSec  int
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	orchestrator *jobs.Orchestrator
	templates    *template.Registry
	corsOrigin   string
	maxUploadMB  int64
	uploadDir    string
	timeoutSec   int
}

// New creates a server wired to the given orchestrator and template registry.
func New(cfg Config, orch *jobs.Orchestrator, reg *template.Registry) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 60
	}
	return &Server{
		orchestrator: orch,
		templates:    reg,
		corsOrigin:   cfg.CORSOrigin,
		maxUploadMB:  cfg.MaxUploadMB,
		uploadDir:    cfg.UploadDir,
		timeoutSec:   cfg.TimeoutSec,
	}
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.corsMiddleware("/health", s.healthHandler))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/omr/templates", s.corsMiddleware("/v1/omr/templates", s.templatesHandler))
	mux.HandleFunc("POST /v1/omr/scans", s.corsMiddleware("/v1/omr/scans", s.createScanHandler))
	mux.HandleFunc("GET /v1/omr/jobs/{id}", s.corsMiddleware("/v1/omr/jobs/{id}", s.jobStatusHandler))
	mux.HandleFunc("GET /v1/omr/jobs/{id}/watch", s.jobWatchHandler)
	mux.HandleFunc("POST /v1/omr/results", s.corsMiddleware("/v1/omr/results", s.gradeHandler))
	mux.HandleFunc("OPTIONS /", s.preflightHandler)
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type ScanResponse struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
}

// JobResponse is the polled view of a processing job. Result is present only
// for COMPLETED jobs, Error only for FAILED ones.
type JobResponse struct {
	ID            string      `json:"id"`
	ExamID        string      `json:"exam_id"`
	Status        jobs.Status `json:"status"`
	StudentNumber string      `json:"student_number,omitempty"`
	Confidence    float64     `json:"confidence,omitempty"`
	Result        *omr.Result `json:"result,omitempty"`
	Error         string      `json:"error,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// GradeRequest materializes an exam result from a completed job.
type GradeRequest struct {
	JobID  string `json:"job_id"`
	ExamID string `json:"exam_id"`
	// StudentID overrides the resolved identity; required when the scan's
	// identity resolution did not succeed.
	StudentID string              `json:"student_id,omitempty"`
	AnswerKey map[string][]string `json:"answer_key"`
}

type GradeResponse struct {
	Result *grade.ExamResult `json:"result"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type TemplatesResponse struct {
	FormTypes []string `json:"form_types"`
}
