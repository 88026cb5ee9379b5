package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduscan/markscan/internal/identity"
	"github.com/eduscan/markscan/internal/jobs"
	"github.com/eduscan/markscan/internal/omr"
	"github.com/eduscan/markscan/internal/template"
)

type testEnv struct {
	server *Server
	mux    *http.ServeMux
	store  *jobs.Store
	orch   *jobs.Orchestrator
}

func newTestEnv(t *testing.T, queueSize int) *testEnv {
	t.Helper()

	store, err := jobs.OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	dir := identity.NewStaticDirectory()
	dir.Add("20250142", "stu-42", "Ayse Demir")
	pipeline, err := omr.NewBuilder().WithDirectory(dir).Build()
	require.NoError(t, err)

	orch := jobs.NewOrchestrator(store, pipeline, jobs.OrchestratorConfig{
		Workers:   1,
		QueueSize: queueSize,
	})
	t.Cleanup(orch.Close)

	srv := New(Config{
		CORSOrigin:  "*",
		MaxUploadMB: 4,
		UploadDir:   t.TempDir(),
		TimeoutSec:  5,
	}, orch, pipeline.Templates())

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	return &testEnv{server: srv, mux: mux, store: store, orch: orch}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func multipartScan(t *testing.T, examID, formType, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if examID != "" {
		require.NoError(t, w.WriteField("exam_id", examID))
	}
	if formType != "" {
		require.NoError(t, w.WriteField("form_type", formType))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = io.Copy(fw, bytes.NewReader([]byte("fake image bytes")))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Time)
}

func TestTemplatesEndpoint(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/omr/templates", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[TemplatesResponse](t, rec)
	assert.Contains(t, resp.FormTypes, template.StandardFourChoice)
}

func TestCreateScanAccepted(t *testing.T) {
	env := newTestEnv(t, 8)

	body, ctype := multipartScan(t, "exam-1", template.StandardFourChoice, "sheet.png")
	req := httptest.NewRequest(http.MethodPost, "/v1/omr/scans", body)
	req.Header.Set("Content-Type", ctype)
	rec := env.do(t, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decodeBody[ScanResponse](t, rec)
	require.NotEmpty(t, resp.JobID)
	assert.Equal(t, jobs.StatusPending, resp.Status)

	j, err := env.orch.Status(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "exam-1", j.ExamID)
	assert.Equal(t, template.StandardFourChoice, j.FormType)
}

func TestCreateScanValidation(t *testing.T) {
	env := newTestEnv(t, 8)

	cases := []struct {
		name     string
		examID   string
		formType string
		filename string
	}{
		{"missing exam id", "", template.StandardFourChoice, "sheet.png"},
		{"missing form type", "exam-1", "", "sheet.png"},
		{"unknown form type", "exam-1", "mystery-form", "sheet.png"},
		{"missing image", "exam-1", template.StandardFourChoice, ""},
		{"unsupported extension", "exam-1", template.StandardFourChoice, "sheet.pdf"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			body, ctype := multipartScan(t, c.examID, c.formType, c.filename)
			req := httptest.NewRequest(http.MethodPost, "/v1/omr/scans", body)
			req.Header.Set("Content-Type", ctype)
			rec := env.do(t, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateScanQueueFull(t *testing.T) {
	// One slot, no workers: the second upload finds the queue full.
	env := newTestEnv(t, 1)

	for i, want := range []int{http.StatusAccepted, http.StatusServiceUnavailable} {
		body, ctype := multipartScan(t, "exam-1", template.StandardFourChoice, "sheet.png")
		req := httptest.NewRequest(http.MethodPost, "/v1/omr/scans", body)
		req.Header.Set("Content-Type", ctype)
		rec := env.do(t, req)
		assert.Equal(t, want, rec.Code, "upload %d", i)
	}
}

func TestJobStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, 8)

	id, err := env.orch.CreateJob(context.Background(), "exam-1", "/tmp/s.png", template.StandardFourChoice)
	require.NoError(t, err)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/omr/jobs/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[JobResponse](t, rec)
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, jobs.StatusPending, resp.Status)
	assert.Nil(t, resp.Result)
}

func TestJobStatusNotFound(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/omr/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func completedJob(t *testing.T, env *testEnv, result *omr.Result) string {
	t.Helper()
	ctx := context.Background()
	id, err := env.orch.CreateJob(ctx, "exam-1", "/tmp/s.png", template.StandardFourChoice)
	require.NoError(t, err)

	raw, err := result.Marshal()
	require.NoError(t, err)
	require.NoError(t, env.store.Transition(ctx, id, jobs.StatusPending, jobs.StatusProcessing, jobs.Update{}))
	require.NoError(t, env.store.Transition(ctx, id, jobs.StatusProcessing, jobs.StatusCompleted, jobs.Update{
		StudentNumber: result.StudentNumberDetected,
		Confidence:    result.ConfidenceScore,
		RawData:       raw,
	}))
	return id
}

func gradableResult() *omr.Result {
	return &omr.Result{
		Success:               true,
		StudentNumberDetected: "20250142",
		StudentID:             "stu-42",
		Subjects:              []string{"Matematik"},
		Answers:               map[string][]string{"Matematik": {"A", "B", "C"}},
		ConfidenceScore:       0.97,
		AlignmentFound:        true,
	}
}

func TestGradeEndpoint(t *testing.T) {
	env := newTestEnv(t, 8)
	id := completedJob(t, env, gradableResult())

	reqBody, err := json.Marshal(GradeRequest{
		JobID:     id,
		AnswerKey: map[string][]string{"Matematik": {"A", "B", "D"}},
	})
	require.NoError(t, err)

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/omr/results", bytes.NewReader(reqBody)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[GradeResponse](t, rec)
	require.NotNil(t, resp.Result)
	// Falls back to the job's exam id and the result's student id.
	assert.Equal(t, "exam-1", resp.Result.ExamID)
	assert.Equal(t, "stu-42", resp.Result.StudentID)
	require.Len(t, resp.Result.Subjects, 1)
	assert.Equal(t, 2, resp.Result.Subjects[0].Correct)
	assert.Equal(t, 1, resp.Result.Subjects[0].Wrong)
	assert.InDelta(t, 1.75*5, resp.Result.Score, 1e-9)
}

func TestGradeEndpointShapeMismatch(t *testing.T) {
	env := newTestEnv(t, 8)
	id := completedJob(t, env, gradableResult())

	reqBody, err := json.Marshal(GradeRequest{
		JobID:     id,
		AnswerKey: map[string][]string{"Matematik": {"A"}},
	})
	require.NoError(t, err)

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/omr/results", bytes.NewReader(reqBody)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGradeEndpointJobWithoutResult(t *testing.T) {
	env := newTestEnv(t, 8)
	id, err := env.orch.CreateJob(context.Background(), "exam-1", "/tmp/s.png", template.StandardFourChoice)
	require.NoError(t, err)

	reqBody, err := json.Marshal(GradeRequest{
		JobID:     id,
		AnswerKey: map[string][]string{"Matematik": {"A", "B", "C"}},
	})
	require.NoError(t, err)

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/omr/results", bytes.NewReader(reqBody)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGradeEndpointValidation(t *testing.T) {
	env := newTestEnv(t, 8)

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/omr/results", bytes.NewReader([]byte("{"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	reqBody, err := json.Marshal(GradeRequest{JobID: "x"})
	require.NoError(t, err)
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/v1/omr/results", bytes.NewReader(reqBody)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	reqBody, err = json.Marshal(GradeRequest{
		JobID:     "missing",
		AnswerKey: map[string][]string{"Matematik": {"A"}},
	})
	require.NoError(t, err)
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/v1/omr/results", bytes.NewReader(reqBody)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSHeadersAndPreflight(t *testing.T) {
	env := newTestEnv(t, 8)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(t, httptest.NewRequest(http.MethodOptions, "/v1/omr/scans", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestMetricsEndpointExposed(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
