package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"patientbrief/internal/analysis"
	"patientbrief/internal/catalog"
	"patientbrief/internal/domain"
	"patientbrief/internal/record"
	"patientbrief/internal/server"
	"patientbrief/internal/summarizer"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

const bundle = `{"entry": [{"resource": {"resourceType": "Patient", "name": [{"family": "Doe"}]}}]}`

type stubAnalyzer struct {
	got analysis.Source
	err error
}

func (s *stubAnalyzer) Analyze(_ context.Context, src analysis.Source) (*domain.Analysis, error) {
	s.got = src
	if s.err != nil {
		return nil, s.err
	}

	summary, _, err := record.ExtractBytes(src.Data)
	if err != nil {
		return nil, fmt.Errorf("extract record: %w", err)
	}

	return &domain.Analysis{
		ID:      "run-1",
		Source:  src.Name,
		Summary: summary,
		Narrative: domain.Narrative{
			TrialMatches: "<p>NCT01234567</p>",
			Report:       "<p>Report</p>",
			TrialLinks:   []string{"https://clinicaltrials.gov/study/NCT01234567"},
		},
	}, nil
}

type stubRuns struct {
	limit int
}

func (s *stubRuns) ListRuns(_ context.Context, limit int) ([]domain.Run, error) {
	s.limit = limit

	return []domain.Run{{
		ID:        "run-1",
		Source:    "Jane_Doe",
		Status:    domain.RunStatusSucceeded,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}}, nil
}

func newTestServer(t *testing.T, analyzer server.Analyzer, runs server.RunLister) (*server.Server, afero.Fs) {
	t.Helper()

	fsys := afero.NewMemMapFs()
	for _, name := range []string{"Jane_Doe.json", "John_Roe.json"} {
		if err := afero.WriteFile(fsys, "samples/"+name, []byte(bundle), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	srv, err := server.New(analyzer, catalog.New(fsys, "samples", "Uploads"), runs, slog.Default())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	return srv, fsys
}

func multipartRequest(t *testing.T, fields map[string]string, fileName string, fileData string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}

	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err = io.WriteString(part, fileData); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}

	return v
}

func TestHomeJSON(t *testing.T) {
	srv, _ := newTestServer(t, &stubAnalyzer{}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	got := decode[map[string][]string](t, rec)
	if diff := cmp.Diff([]string{"Jane_Doe", "John_Roe"}, got["files"]); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}

	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestHomeHTML(t *testing.T) {
	srv, _ := newTestServer(t, &stubAnalyzer{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `<option value="Jane_Doe">Jane_Doe</option>`) {
		t.Fatalf("expected sample option in page, got %s", body)
	}
}

func TestAnalyzeExistingFile(t *testing.T) {
	analyzer := &stubAnalyzer{}
	srv, _ := newTestServer(t, analyzer, nil)

	form := url.Values{"existingFile": {"Jane_Doe"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}

	if analyzer.got.Name != "Jane_Doe" {
		t.Fatalf("unexpected source: %+v", analyzer.got)
	}

	got := decode[map[string]json.RawMessage](t, rec)
	for _, key := range []string{"extracted_data", "Clinical_trials_matched", "readble_patient_data", "trial_links", "run_id"} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing response key %q in %s", key, rec.Body.String())
		}
	}

	var extracted map[string]json.RawMessage
	if err := json.Unmarshal(got["extracted_data"], &extracted); err != nil {
		t.Fatalf("decode extracted data: %v", err)
	}

	if string(extracted["patient_data"]) != `{"name":"Doe"}` {
		t.Fatalf("unexpected patient data: %s", extracted["patient_data"])
	}
}

func TestAnalyzeUploadTakesPrecedence(t *testing.T) {
	analyzer := &stubAnalyzer{}
	srv, fsys := newTestServer(t, analyzer, nil)

	req := multipartRequest(t, map[string]string{"existingFile": "Jane_Doe"}, "upload.json", bundle)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}

	if analyzer.got.Name != "upload.json" {
		t.Fatalf("expected upload to win, got %q", analyzer.got.Name)
	}

	stored, err := afero.ReadFile(fsys, "Uploads/upload.json")
	if err != nil || string(stored) != bundle {
		t.Fatalf("expected stored upload, got %q %v", stored, err)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name       string
		analyzer   *stubAnalyzer
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantError  string
	}{
		{
			name:     "Nothing submitted",
			analyzer: &stubAnalyzer{},
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, nil, "", "")
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "No file uploaded or selected.",
		},
		{
			name:     "Unknown sample",
			analyzer: &stubAnalyzer{},
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, map[string]string{"existingFile": "Nobody"}, "", "")
			},
			wantStatus: http.StatusNotFound,
			wantError:  "The selected file was not found.",
		},
		{
			name:     "Malformed upload",
			analyzer: &stubAnalyzer{},
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, nil, "bad.json", `{"entry": {}}`)
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "The document is not a valid patient bundle.",
		},
		{
			name:     "Narrative failure",
			analyzer: &stubAnalyzer{err: fmt.Errorf("summarize record: %w", summarizer.ErrExternalService)},
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, map[string]string{"existingFile": "Jane_Doe"}, "", "")
			},
			wantStatus: http.StatusBadGateway,
			wantError:  "The narrative service failed.",
		},
		{
			name:     "Unexpected failure",
			analyzer: &stubAnalyzer{err: errors.New("boom")},
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, map[string]string{"existingFile": "Jane_Doe"}, "", "")
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error.",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			srv, _ := newTestServer(t, test.analyzer, nil)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, test.req(t))

			if rec.Code != test.wantStatus {
				t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
			}

			if got := decode[map[string]string](t, rec); got["error"] != test.wantError {
				t.Fatalf("unexpected error body: %v", got)
			}
		})
	}
}

func TestRuns(t *testing.T) {
	runs := &stubRuns{}
	srv, _ := newTestServer(t, &stubAnalyzer{}, runs)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	if runs.limit != 10 {
		t.Fatalf("unexpected limit: %d", runs.limit)
	}

	got := decode[map[string][]map[string]any](t, rec)
	if len(got["runs"]) != 1 || got["runs"][0]["status"] != "succeeded" {
		t.Fatalf("unexpected runs: %v", got)
	}
}

func TestRunsInvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t, &stubAnalyzer{}, &stubRuns{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=-1", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestRunsWithoutHistory(t *testing.T) {
	srv, _ := newTestServer(t, &stubAnalyzer{}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))

	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"runs":[]}` {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}
