package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/eduscan/markscan/internal/grade"
	"github.com/eduscan/markscan/internal/jobs"
	"github.com/eduscan/markscan/internal/utils"
	"github.com/eduscan/markscan/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// templatesHandler lists the registered form types.
func (s *Server) templatesHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, TemplatesResponse{FormTypes: s.templates.Names()})
}

// createScanHandler accepts a multipart scan upload, creates a processing
// job and dispatches it. The response carries the job id for polling.
func (s *Server) createScanHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		scanUploadsTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	examID := r.FormValue("exam_id")
	formType := r.FormValue("form_type")
	if examID == "" || formType == "" {
		scanUploadsTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, "exam_id and form_type are required", http.StatusBadRequest)
		return
	}
	if _, err := s.templates.Get(formType); err != nil {
		scanUploadsTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		scanUploadsTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if !utils.IsSupportedImage(header.Filename) {
		scanUploadsTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, "Unsupported image format", http.StatusBadRequest)
		return
	}

	imagePath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		scanUploadsTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	jobID, err := s.orchestrator.CreateJob(r.Context(), examID, imagePath, formType)
	if err != nil {
		s.writeError(w, "Failed to create job", http.StatusInternalServerError)
		return
	}
	if err := s.orchestrator.Dispatch(jobID); err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			scanUploadsTotal.WithLabelValues("queue_full").Inc()
			s.writeError(w, "Processing queue is full, retry later", http.StatusServiceUnavailable)
			return
		}
		s.writeError(w, "Failed to dispatch job", http.StatusInternalServerError)
		return
	}

	scanUploadsTotal.WithLabelValues("accepted").Inc()
	s.writeJSON(w, http.StatusAccepted, ScanResponse{JobID: jobID, Status: jobs.StatusPending})
}

// jobStatusHandler returns the polled view of one job.
func (s *Server) jobStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	j, err := s.orchestrator.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			s.writeError(w, "Job not found", http.StatusNotFound)
			return
		}
		s.writeError(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	resp, err := jobResponse(j)
	if err != nil {
		s.writeError(w, "Failed to decode job result", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// gradeHandler materializes an exam result from a completed job and the
// posted answer key.
func (s *Server) gradeHandler(w http.ResponseWriter, r *http.Request) {
	var req GradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.JobID == "" || len(req.AnswerKey) == 0 {
		s.writeError(w, "job_id and answer_key are required", http.StatusBadRequest)
		return
	}

	j, err := s.orchestrator.Status(r.Context(), req.JobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			s.writeError(w, "Job not found", http.StatusNotFound)
			return
		}
		s.writeError(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	state, err := j.State()
	if err != nil {
		s.writeError(w, "Failed to decode job result", http.StatusInternalServerError)
		return
	}
	if state.Result == nil {
		s.writeError(w, "Job has no result to grade", http.StatusConflict)
		return
	}

	studentID := req.StudentID
	if studentID == "" {
		studentID = state.Result.StudentID
	}
	examID := req.ExamID
	if examID == "" {
		examID = j.ExamID
	}

	examResult, err := grade.FromOMR(state.Result, examID, studentID, req.AnswerKey)
	if err != nil {
		var verr *grade.ValidationError
		if errors.As(err, &verr) {
			s.writeError(w, verr.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.writeError(w, "Failed to grade result", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, GradeResponse{Result: examResult})
}

// jobResponse builds the API view of a job using its tagged state.
func jobResponse(j *jobs.Job) (JobResponse, error) {
	state, err := j.State()
	if err != nil {
		return JobResponse{}, err
	}
	return JobResponse{
		ID:            j.ID,
		ExamID:        j.ExamID,
		Status:        state.Status,
		StudentNumber: j.StudentNumber,
		Confidence:    j.Confidence,
		Result:        state.Result,
		Error:         state.ErrorMessage,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}, nil
}

// saveUpload persists the uploaded image under the upload directory.
func (s *Server) saveUpload(file io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}
	name := fmt.Sprintf("%s%s", uuid.NewString(), filepath.Ext(filename))
	path := filepath.Join(s.uploadDir, name)
	out, err := os.Create(path) //nolint:gosec // G304: path is built from a fresh uuid in the configured dir
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer func() { _ = out.Close() }()
	if _, err := io.Copy(out, file); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return path, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, msg string, status int) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}
