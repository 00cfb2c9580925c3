package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/hybridocr/internal/core/extraction_engine"
	"github.com/markdave123-py/hybridocr/internal/models"
	"github.com/markdave123-py/hybridocr/internal/services"
)

type fakeService struct {
	res     *services.ExtractResult
	err     error
	records []models.Extraction
	readErr error
	texts   map[string]string
	getIDs  []string
	deleted []string

	gotName string
	gotData []byte
}

func (f *fakeService) Extract(ctx context.Context, filename string, data []byte) (*services.ExtractResult, error) {
	f.gotName, f.gotData = filename, data
	return f.res, f.err
}

func (f *fakeService) ListRecent(ctx context.Context, limit int) ([]models.Extraction, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeService) Get(ctx context.Context, id string) (*models.Extraction, error) {
	f.getIDs = append(f.getIDs, id)
	if f.readErr != nil {
		return nil, f.readErr
	}
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i], nil
		}
	}
	return nil, nil
}

func (f *fakeService) Text(ctx context.Context, id string) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	text, ok := f.texts[id]
	if !ok {
		return "", services.ErrNotFound
	}
	return text, nil
}

func (f *fakeService) Delete(ctx context.Context, id string) error {
	if f.readErr != nil {
		return f.readErr
	}
	for i := range f.records {
		if f.records[i].ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return services.ErrNotFound
}

func uploadRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/extract", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestExtract(t *testing.T) {
	testCases := []struct {
		name       string
		field      string
		svc        *fakeService
		wantStatus int
		wantKey    string
		wantValue  string
	}{
		{
			name:       "Success",
			field:      "pdf",
			svc:        &fakeService{res: &services.ExtractResult{Text: "Hello", Mode: "ocr"}},
			wantStatus: http.StatusOK,
			wantKey:    "mode",
			wantValue:  "ocr",
		},
		{
			name:       "MissingField",
			field:      "file",
			svc:        &fakeService{},
			wantStatus: http.StatusBadRequest,
			wantKey:    "error",
			wantValue:  "No file uploaded",
		},
		{
			name:       "Rejected",
			field:      "pdf",
			svc:        &fakeService{err: &extraction_engine.RejectedError{Reason: "Uploaded file is not a PDF."}},
			wantStatus: http.StatusBadRequest,
			wantKey:    "error",
			wantValue:  "Uploaded file is not a PDF.",
		},
		{
			name:       "ExtractionFailed",
			field:      "pdf",
			svc:        &fakeService{err: errors.New("tesseract: exit status 1")},
			wantStatus: http.StatusInternalServerError,
			wantKey:    "error",
			wantValue:  "Failed to extract text from PDF.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewExtractHandler(tc.svc, 10<<20, nil)
			rec := httptest.NewRecorder()
			h.Extract(rec, uploadRequest(t, tc.field, "report.pdf", []byte("%PDF-1.4")))

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if got := decodeBody(t, rec)[tc.wantKey]; got != tc.wantValue {
				t.Errorf("expected %s=%q, got %q", tc.wantKey, tc.wantValue, got)
			}
		})
	}
}

func TestExtractPassesUpload(t *testing.T) {
	svc := &fakeService{res: &services.ExtractResult{Text: "", Mode: "text"}}
	rec := httptest.NewRecorder()
	NewExtractHandler(svc, 10<<20, nil).Extract(rec, uploadRequest(t, "pdf", "scan.pdf", []byte("%PDF-1.7 data")))

	if svc.gotName != "scan.pdf" || string(svc.gotData) != "%PDF-1.7 data" {
		t.Errorf("service got %q / %q", svc.gotName, svc.gotData)
	}
	body := decodeBody(t, rec)
	if text, ok := body["text"]; !ok || text != "" {
		t.Errorf("expected empty text field to be present, got %v", body)
	}
}

func TestExtractNotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	NewExtractHandler(&fakeService{}, 10<<20, nil).Extract(rec, req)

	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "No file uploaded" {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestExtractTooLarge(t *testing.T) {
	svc := &fakeService{res: &services.ExtractResult{Text: "x", Mode: "text"}}
	rec := httptest.NewRecorder()
	NewExtractHandler(svc, 1<<20, nil).Extract(rec, uploadRequest(t, "pdf", "big.pdf", bytes.Repeat([]byte("a"), 3<<20)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if svc.gotData != nil {
		t.Error("service must not see an oversized upload")
	}
}

func TestHomeAndHealth(t *testing.T) {
	h := NewExtractHandler(&fakeService{}, 0, nil)

	rec := httptest.NewRecorder()
	h.Home(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if decodeBody(t, rec)["message"] != "Hybrid OCR Backend Running" {
		t.Errorf("unexpected home body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if decodeBody(t, rec)["status"] != "ok" {
		t.Errorf("unexpected health body %s", rec.Body.String())
	}
}

func TestListExtractions(t *testing.T) {
	svc := &fakeService{records: []models.Extraction{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	h := NewExtractHandler(svc, 0, nil)

	rec := httptest.NewRecorder()
	h.ListExtractions(rec, httptest.NewRequest(http.MethodGet, "/extractions?limit=2", nil))
	var got []models.Extraction
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("unexpected records %+v", got)
	}

	for _, limit := range []string{"zero", "0", "501"} {
		rec = httptest.NewRecorder()
		h.ListExtractions(rec, httptest.NewRequest(http.MethodGet, "/extractions?limit="+limit, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for limit=%s, got %d", limit, rec.Code)
		}
	}
}

func TestReadsWhenAuditDisabled(t *testing.T) {
	h := NewExtractHandler(&fakeService{readErr: services.ErrAuditDisabled}, 0, nil)
	rec := httptest.NewRecorder()
	h.ListExtractions(rec, httptest.NewRequest(http.MethodGet, "/extractions", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

const knownID = "3f1c2a52-8d1e-4c1b-9a57-0f6d7f3e2b10"

func extractionRouter(svc *fakeService) http.Handler {
	h := NewExtractHandler(svc, 0, nil)
	r := chi.NewRouter()
	r.Get("/extractions/{id}", h.GetExtraction)
	r.Get("/extractions/{id}/text", h.ExtractionText)
	r.Delete("/extractions/{id}", h.DeleteExtraction)
	return r
}

func TestExtractionByID(t *testing.T) {
	testCases := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"Get", http.MethodGet, "/extractions/" + knownID, http.StatusOK, ""},
		{"GetMissing", http.MethodGet, "/extractions/0b5e7c1e-2f0a-4a59-8f43-4a3c2d1e0f99", http.StatusNotFound, ""},
		{"GetMalformedID", http.MethodGet, "/extractions/not-a-uuid", http.StatusNotFound, ""},
		{"Text", http.MethodGet, "/extractions/" + knownID + "/text", http.StatusOK, "Hello"},
		{"TextMalformedID", http.MethodGet, "/extractions/x/text", http.StatusNotFound, ""},
		{"Delete", http.MethodDelete, "/extractions/" + knownID, http.StatusNoContent, ""},
		{"DeleteMissing", http.MethodDelete, "/extractions/0b5e7c1e-2f0a-4a59-8f43-4a3c2d1e0f99", http.StatusNotFound, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{
				records: []models.Extraction{{ID: knownID, Status: models.StatusCompleted}},
				texts:   map[string]string{knownID: "Hello"},
			}
			rec := httptest.NewRecorder()
			extractionRouter(svc).ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			if rec.Code != tc.wantStatus {
				t.Errorf("expected %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if tc.wantBody != "" && rec.Body.String() != tc.wantBody {
				t.Errorf("expected body %q, got %q", tc.wantBody, rec.Body.String())
			}
		})
	}
}

func TestMalformedIDNeverReachesService(t *testing.T) {
	svc := &fakeService{}
	rec := httptest.NewRecorder()
	extractionRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extractions/1%27%20OR%201=1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if len(svc.getIDs) != 0 {
		t.Errorf("service was queried with %v", svc.getIDs)
	}
}

func TestTextWhenArchiveDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	extractionRouter(&fakeService{readErr: services.ErrArchiveDisabled}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extractions/"+knownID+"/text", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
