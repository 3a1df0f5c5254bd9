package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
)

type stubPipeline struct {
	report    *domain.ValidationReport
	plan      *domain.RenamePlan
	results   []domain.ImportResult
	batch     *domain.UploadBatch
	err       error
	published []domain.ImportJob
}

func (s *stubPipeline) Validate(context.Context, string) (*domain.ValidationReport, error) {
	return s.report, s.err
}

func (s *stubPipeline) Rename(context.Context, string, []string) (*domain.RenamePlan, error) {
	return s.plan, s.err
}

func (s *stubPipeline) Import(context.Context, string, string) ([]domain.ImportResult, error) {
	return s.results, s.err
}

func (s *stubPipeline) GetByID(context.Context, string) (*domain.UploadBatch, error) {
	return s.batch, s.err
}

func (s *stubPipeline) PublishImportJob(_ context.Context, job domain.ImportJob) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, job)
	return nil
}

func (s *stubPipeline) SubscribeImportJobs(context.Context, func(context.Context, domain.ImportJob) error) error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(s *stubPipeline) http.Handler {
	h := NewHandler(s, s, s, s, s, testLogger())
	return Chain(h.Routes(), RequestID(), Recover(testLogger()))
}

func TestValidateEndpointReturnsReport(t *testing.T) {
	stub := &stubPipeline{report: &domain.ValidationReport{
		Batch:   domain.UploadBatch{ID: "b-1", Study: "Study 7", Status: domain.StatusValidated},
		IsValid: true,
	}}
	srv := newServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/v1/batches/validate",
		strings.NewReader(`{"folder_path":"/data/incoming/study 7"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report domain.ValidationReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !report.IsValid || report.Batch.ID != "b-1" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestValidateEndpointMapsFolderNotFound(t *testing.T) {
	stub := &stubPipeline{err: domain.WrapError(domain.ErrFolderNotFound, "scan", io.ErrUnexpectedEOF)}
	srv := newServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/v1/batches/validate",
		strings.NewReader(`{"folder_path":"/nope"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestValidateEndpointRejectsMalformedBody(t *testing.T) {
	srv := newServer(&stubPipeline{})
	req := httptest.NewRequest(http.MethodPost, "/v1/batches/validate", strings.NewReader(`{"folder`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestImportEndpointAsyncQueuesJob(t *testing.T) {
	stub := &stubPipeline{}
	srv := newServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/v1/batches/import",
		strings.NewReader(`{"folder_path":"/data/incoming/Study_7","study":"Study 7","async":true}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(stub.published) != 1 || stub.published[0].Folder != "/data/incoming/Study_7" {
		t.Fatalf("unexpected published jobs: %+v", stub.published)
	}
}

func TestImportEndpointSyncReturnsResults(t *testing.T) {
	stub := &stubPipeline{results: []domain.ImportResult{
		{TableID: "edrr_issues", RowsRead: 2, RowsInserted: 2, Success: true},
	}}
	srv := newServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/v1/batches/import",
		strings.NewReader(`{"folder_path":"/data/incoming/Study_7"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Results []domain.ImportResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Results) != 1 || !body.Results[0].Success {
		t.Fatalf("unexpected results: %+v", body.Results)
	}
}

func TestGetBatchMapsNotFound(t *testing.T) {
	stub := &stubPipeline{err: domain.ErrBatchNotFound}
	srv := newServer(stub)

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/missing", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestBackpressureShedsWhenSaturated(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	slow := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		entered <- struct{}{}
		<-release
		w.WriteHeader(http.StatusOK)
	})
	srv := Chain(slow, Backpressure(1))

	done := make(chan struct{})
	go func() {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		close(done)
	}()
	<-entered

	// Second request arrives while the first still holds the slot.
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 under saturation, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	close(release)
	<-done
}

func TestRateLimitSheds(t *testing.T) {
	srv := Chain(newServer(&stubPipeline{batch: &domain.UploadBatch{ID: "b-1"}}), RateLimit(1, 1))

	first := httptest.NewRecorder()
	srv.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	srv.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}
