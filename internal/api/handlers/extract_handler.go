package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/hybridocr/internal/core/extraction_engine"
	"github.com/markdave123-py/hybridocr/internal/models"
	"github.com/markdave123-py/hybridocr/internal/services"
)

const (
	msgNoFile        = "No file uploaded"
	msgExtractFailed = "Failed to extract text from PDF."
	msgInternal      = "Internal server error"

	maxListLimit = 500
)

// ExtractionService is the part of services.ExtractionService the handlers use.
type ExtractionService interface {
	Extract(ctx context.Context, filename string, data []byte) (*services.ExtractResult, error)
	ListRecent(ctx context.Context, limit int) ([]models.Extraction, error)
	Get(ctx context.Context, id string) (*models.Extraction, error)
	Text(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) error
}

type ExtractHandler struct {
	svc     ExtractionService
	maxSize int64
	logger  *zap.Logger
}

func NewExtractHandler(svc ExtractionService, maxSize int64, logger *zap.Logger) *ExtractHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractHandler{svc: svc, maxSize: maxSize, logger: logger}
}

type extractResponse struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
}

// Home answers GET / so a browser hitting the backend sees it is up.
func (h *ExtractHandler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hybrid OCR Backend Running"})
}

func (h *ExtractHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Extract handles POST /extract with the PDF in the multipart field "pdf".
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With(zap.String("req_id", middleware.GetReqID(r.Context())))

	if h.maxSize > 0 {
		// room for the multipart envelope; the file itself is checked by the validator
		r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("File exceeds maximum allowed size (%d MB).", h.maxSize>>20))
			return
		}
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error("read upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	res, err := h.svc.Extract(r.Context(), header.Filename, data)
	if err != nil {
		var rejected *extraction_engine.RejectedError
		if errors.As(err, &rejected) {
			writeError(w, http.StatusBadRequest, rejected.Reason)
			return
		}
		log.Error("extract", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgExtractFailed)
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{Text: res.Text, Mode: res.Mode})
}

// ListExtractions handles GET /extractions?limit=N.
func (h *ExtractHandler) ListExtractions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
			return
		}
		limit = n
	}

	recs, err := h.svc.ListRecent(r.Context(), limit)
	if err != nil {
		h.readError(w, err)
		return
	}
	if recs == nil {
		recs = []models.Extraction{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetExtraction handles GET /extractions/{id}.
func (h *ExtractHandler) GetExtraction(w http.ResponseWriter, r *http.Request) {
	id, ok := extractionID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.readError(w, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "extraction not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ExtractionText handles GET /extractions/{id}/text with the archived text.
func (h *ExtractHandler) ExtractionText(w http.ResponseWriter, r *http.Request) {
	id, ok := extractionID(w, r)
	if !ok {
		return
	}
	text, err := h.svc.Text(r.Context(), id)
	if err != nil {
		h.readError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

// DeleteExtraction handles DELETE /extractions/{id}.
func (h *ExtractHandler) DeleteExtraction(w http.ResponseWriter, r *http.Request) {
	id, ok := extractionID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.readError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// extractionID answers 404 for ids that cannot exist, before they reach the database.
func extractionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "extraction not found")
		return "", false
	}
	return id.String(), true
}

func (h *ExtractHandler) readError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrAuditDisabled), errors.Is(err, services.ErrArchiveDisabled):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "extraction not found")
		return
	}
	h.logger.Error("audit read", zap.Error(err))
	writeError(w, http.StatusInternalServerError, msgInternal)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
