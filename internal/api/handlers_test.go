package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/nano-convert/internal/admission"
	"github.com/yourusername/nano-convert/internal/jobs"
	"github.com/yourusername/nano-convert/internal/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAdmitter struct {
	files []admission.File
	spec  *tools.Spec
	err   error
	calls int
}

func (s *stubAdmitter) Admit(ctx context.Context, clientID, slug string, files []*multipart.FileHeader) ([]admission.File, *tools.Spec, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.files, s.spec, nil
}

type stubStager struct {
	keys       []string
	stageErr   error
	presignURL string
	presignErr error
	pingErr    error
	staged     int
}

func (s *stubStager) Stage(ctx context.Context, data []byte, contentType, prefix string) (string, error) {
	if s.stageErr != nil {
		return "", s.stageErr
	}
	s.staged++
	return fmt.Sprintf("%s/object-%d", prefix, s.staged), nil
}

func (s *stubStager) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	return s.presignURL, nil
}

func (s *stubStager) Ping(ctx context.Context) error { return s.pingErr }

type stubJobStore struct {
	record *jobs.Record
	getErr error
}

func (s *stubJobStore) Create(ctx context.Context, slug string, inputKeys []string) (*jobs.Record, error) {
	record := &jobs.Record{
		ID:        "job-1",
		Slug:      slug,
		Status:    jobs.StatusQueued,
		InputKeys: inputKeys,
	}
	s.record = record
	return record, nil
}

func (s *stubJobStore) Get(ctx context.Context, jobID string) (*jobs.Record, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.record, nil
}

type stubEnqueuer struct {
	heavy bool
	calls int
}

func (s *stubEnqueuer) Enqueue(ctx context.Context, record *jobs.Record, heavy bool) (string, error) {
	s.calls++
	s.heavy = heavy
	return "task-1", nil
}

func multipartRequest(t *testing.T, path string, files map[string][]byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		fw, err := writer.CreateFormFile("files[]", name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := io.Copy(fw, bytes.NewReader(data)); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return payload
}

func TestRunToolHandlerAcceptsJob(t *testing.T) {
	spec, _ := tools.Lookup("merge-pdf")
	admitter := &stubAdmitter{
		files: []admission.File{
			{Filename: "a.pdf", Data: []byte("%PDF-"), ContentType: "application/pdf"},
			{Filename: "b.pdf", Data: []byte("%PDF-"), ContentType: "application/pdf"},
		},
		spec: &spec,
	}
	stager := &stubStager{}
	store := &stubJobStore{}
	enqueuer := &stubEnqueuer{}

	router := gin.New()
	router.POST("/api/tools/:slug", RunToolHandler(admitter, stager, store, enqueuer, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/api/tools/merge-pdf", map[string][]byte{
		"a.pdf": []byte("%PDF-"),
		"b.pdf": []byte("%PDF-"),
	}))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusAccepted, w.Body.String())
	}
	payload := decodeBody(t, w)
	if payload["jobId"] != "job-1" {
		t.Fatalf("unexpected jobId: %v", payload["jobId"])
	}
	if payload["status"] != string(jobs.StatusQueued) {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if stager.staged != 2 {
		t.Fatalf("staged %d inputs, want 2", stager.staged)
	}
	if len(store.record.InputKeys) != 2 {
		t.Fatalf("job created with %d input keys, want 2", len(store.record.InputKeys))
	}
	if enqueuer.calls != 1 || !enqueuer.heavy {
		t.Fatalf("expected one heavy enqueue, got calls=%d heavy=%v", enqueuer.calls, enqueuer.heavy)
	}
}

func TestRunToolHandlerMapsRejectionCodes(t *testing.T) {
	cases := []struct {
		code       string
		wantStatus int
	}{
		{admission.CodeRateLimited, http.StatusTooManyRequests},
		{admission.CodeToolNotFound, http.StatusNotFound},
		{admission.CodeNoFiles, http.StatusBadRequest},
		{admission.CodeFileTooLarge, http.StatusRequestEntityTooLarge},
		{admission.CodeUnsupportedType, http.StatusUnsupportedMediaType},
		{admission.CodeMalwareDetected, http.StatusBadRequest},
		{admission.CodeScanUnavailable, http.StatusBadRequest},
	}

	for _, tc := range cases {
		admitter := &stubAdmitter{err: &admission.Error{Code: tc.code, Message: "rejected"}}
		stager := &stubStager{}
		router := gin.New()
		router.POST("/api/tools/:slug", RunToolHandler(admitter, stager, &stubJobStore{}, &stubEnqueuer{}, nil))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, multipartRequest(t, "/api/tools/merge-pdf", map[string][]byte{"a.pdf": []byte("%PDF-")}))

		if w.Code != tc.wantStatus {
			t.Fatalf("code %s: status = %d, want %d", tc.code, w.Code, tc.wantStatus)
		}
		payload := decodeBody(t, w)
		if payload["code"] != tc.code {
			t.Fatalf("code %s: body code = %v", tc.code, payload["code"])
		}
		if stager.staged != 0 {
			t.Fatalf("code %s: rejected request must not stage inputs", tc.code)
		}
	}
}

func TestRunToolHandlerRejectsNonMultipart(t *testing.T) {
	spec, _ := tools.Lookup("merge-pdf")
	router := gin.New()
	router.POST("/api/tools/:slug", RunToolHandler(&stubAdmitter{spec: &spec}, &stubStager{}, &stubJobStore{}, &stubEnqueuer{}, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/tools/merge-pdf", bytes.NewBufferString(`{"files":[]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestJobStatusHandlerReturnsNotFound(t *testing.T) {
	router := gin.New()
	router.GET("/api/jobs/:id", JobStatusHandler(&stubJobStore{}, &stubStager{}, time.Hour, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	payload := decodeBody(t, w)
	if payload["code"] != "JOB_NOT_FOUND" {
		t.Fatalf("unexpected code: %v", payload["code"])
	}
}

func TestJobStatusHandlerAttachesDownloadURLWhenCompleted(t *testing.T) {
	store := &stubJobStore{record: &jobs.Record{
		ID:        "job-1",
		Slug:      "convert-image",
		Status:    jobs.StatusCompleted,
		OutputKey: "output/object-1",
	}}
	stager := &stubStager{presignURL: "https://storage.example.com/output/object-1?sig=abc"}

	router := gin.New()
	router.GET("/api/jobs/:id", JobStatusHandler(store, stager, time.Hour, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	payload := decodeBody(t, w)
	if payload["status"] != string(jobs.StatusCompleted) {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["outputKey"] != "output/object-1" {
		t.Fatalf("unexpected outputKey: %v", payload["outputKey"])
	}
	if payload["outputUrl"] != stager.presignURL {
		t.Fatalf("unexpected outputUrl: %v", payload["outputUrl"])
	}
}

func TestJobStatusHandlerReportsFailure(t *testing.T) {
	store := &stubJobStore{record: &jobs.Record{
		ID:     "job-1",
		Slug:   "merge-pdf",
		Status: jobs.StatusFailed,
		Error:  "conversion failed",
	}}

	router := gin.New()
	router.GET("/api/jobs/:id", JobStatusHandler(store, &stubStager{}, time.Hour, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	payload := decodeBody(t, w)
	if payload["status"] != string(jobs.StatusFailed) {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["error"] != "conversion failed" {
		t.Fatalf("unexpected error: %v", payload["error"])
	}
	if _, ok := payload["outputUrl"]; ok {
		t.Fatal("failed job must not expose a download URL")
	}
}

func TestListToolsHandlerReturnsRegistry(t *testing.T) {
	router := gin.New()
	router.GET("/api/tools", ListToolsHandler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tools", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	payload := decodeBody(t, w)
	list, ok := payload["tools"].([]any)
	if !ok || len(list) != len(tools.All()) {
		t.Fatalf("unexpected tools payload: %v", payload["tools"])
	}
}

func TestHealthHandler(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	router := gin.New()
	router.GET("/api/health", HealthHandler(rdb, &stubStager{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	payload := decodeBody(t, w)
	if payload["ok"] != true || payload["redis"] != true || payload["s3"] != true {
		t.Fatalf("unexpected health payload: %v", payload)
	}

	// Redis停止時は503
	mr.Close()
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status with redis down = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	payload = decodeBody(t, w)
	if payload["ok"] != false || payload["redis"] != false {
		t.Fatalf("unexpected degraded payload: %v", payload)
	}
}
