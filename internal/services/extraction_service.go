package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/hybridocr/internal/core"
	"github.com/markdave123-py/hybridocr/internal/core/extraction_engine"
	objectclient "github.com/markdave123-py/hybridocr/internal/core/object-client"
	"github.com/markdave123-py/hybridocr/internal/models"
)

var (
	// ErrAuditDisabled is returned by the read methods when no database is configured.
	ErrAuditDisabled = errors.New("audit log disabled")
	// ErrArchiveDisabled is returned by Text when no object storage is configured.
	ErrArchiveDisabled = errors.New("archive disabled")
	ErrNotFound        = errors.New("extraction not found")
)

// Extractor turns PDF bytes into text.
type Extractor interface {
	Extract(ctx context.Context, pdf []byte) (*extraction_engine.Output, error)
}

// ExtractResult is what a successful POST /extract returns.
type ExtractResult struct {
	ID      string
	Text    string
	Mode    string
	Pages   int
	Elapsed time.Duration
}

type ExtractionService struct {
	extractor Extractor
	db        core.DbClient
	storage   core.ObjectClient
	bucket    string
	maxSize   int64
	logger    *zap.Logger

	validate func(filename string, data []byte, maxSize int64) (int, error)
	now      func() time.Time
}

// NewExtractionService builds the service. db and storage are optional; a nil
// value disables the audit log or the archive.
func NewExtractionService(extractor Extractor, db core.DbClient, storage core.ObjectClient, bucket string, maxSize int64, logger *zap.Logger) *ExtractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractionService{
		extractor: extractor,
		db:        db,
		storage:   storage,
		bucket:    bucket,
		maxSize:   maxSize,
		logger:    logger,
		validate:  extraction_engine.ValidatePDF,
		now:       time.Now,
	}
}

func (s *ExtractionService) Extract(ctx context.Context, filename string, data []byte) (*ExtractResult, error) {
	id := uuid.NewString()
	start := s.now()
	log := s.logger.With(zap.String("extraction_id", id), zap.String("file", filename))

	pages, err := s.validate(filename, data, s.maxSize)
	if err != nil {
		log.Info("upload rejected", zap.Error(err))
		s.record(ctx, log, &models.Extraction{
			ID: id, FileName: filename, SizeBytes: int64(len(data)),
			Status: models.StatusFailed, ErrorMessage: err.Error(),
			ElapsedMS: s.now().Sub(start).Milliseconds(), CreatedAt: start,
		})
		return nil, err
	}

	out, err := s.extractor.Extract(ctx, data)
	if err != nil {
		log.Error("extraction failed", zap.Error(err))
		s.record(ctx, log, &models.Extraction{
			ID: id, FileName: filename, SizeBytes: int64(len(data)), Pages: pages,
			Status: models.StatusFailed, ErrorMessage: err.Error(),
			ElapsedMS: s.now().Sub(start).Milliseconds(), CreatedAt: start,
		})
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	if out.Pages > 0 {
		pages = out.Pages
	}

	res := &ExtractResult{
		ID:      id,
		Text:    out.Text,
		Mode:    out.Mode,
		Pages:   pages,
		Elapsed: s.now().Sub(start),
	}
	log.Info("extraction completed",
		zap.String("mode", res.Mode),
		zap.Int("pages", res.Pages),
		zap.Int64("elapsed_ms", res.Elapsed.Milliseconds()))

	rec := &models.Extraction{
		ID: id, FileName: filename, SizeBytes: int64(len(data)), Pages: pages,
		Mode: res.Mode, Status: models.StatusCompleted, TextLength: len(res.Text),
		ElapsedMS: res.Elapsed.Milliseconds(), CreatedAt: start,
	}
	s.persist(ctx, log, rec, data, res.Text)
	return res, nil
}

// persist archives the upload and its text and writes the audit record
// concurrently. Failures are logged only.
func (s *ExtractionService) persist(ctx context.Context, log *zap.Logger, rec *models.Extraction, data []byte, text string) {
	var g errgroup.Group

	if s.storage != nil && s.bucket != "" {
		pdfKey := objectclient.UploadKey(rec.ID, rec.FileName)
		rec.StorageURL = fmt.Sprintf("s3://%s/%s", s.bucket, pdfKey)

		g.Go(func() error {
			if _, err := s.storage.UploadFile(ctx, s.bucket, pdfKey, data, "application/pdf"); err != nil {
				return fmt.Errorf("archive pdf: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			if _, err := s.storage.UploadFile(ctx, s.bucket, objectclient.TextKey(rec.ID), []byte(text), "text/plain; charset=utf-8"); err != nil {
				return fmt.Errorf("archive text: %w", err)
			}
			return nil
		})
	}
	if s.db != nil {
		g.Go(func() error {
			if err := s.db.InsertExtraction(ctx, rec); err != nil {
				return fmt.Errorf("audit insert: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn("post-processing incomplete", zap.Error(err))
	}
}

func (s *ExtractionService) record(ctx context.Context, log *zap.Logger, rec *models.Extraction) {
	if s.db == nil {
		return
	}
	if err := s.db.InsertExtraction(ctx, rec); err != nil {
		log.Warn("audit insert failed", zap.Error(err))
	}
}

func (s *ExtractionService) ListRecent(ctx context.Context, limit int) ([]models.Extraction, error) {
	if s.db == nil {
		return nil, ErrAuditDisabled
	}
	return s.db.ListRecentExtractions(ctx, limit)
}

func (s *ExtractionService) Get(ctx context.Context, id string) (*models.Extraction, error) {
	if s.db == nil {
		return nil, ErrAuditDisabled
	}
	return s.db.GetExtraction(ctx, id)
}

// Text returns the archived text of an extraction.
func (s *ExtractionService) Text(ctx context.Context, id string) (string, error) {
	if s.storage == nil || s.bucket == "" {
		return "", ErrArchiveDisabled
	}
	data, err := s.storage.GetFile(ctx, s.bucket, objectclient.TextKey(id))
	if errors.Is(err, core.ErrObjectNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get archived text: %w", err)
	}
	return string(data), nil
}

// Delete removes an extraction's archived objects and then its audit record.
func (s *ExtractionService) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return ErrAuditDisabled
	}
	rec, err := s.db.GetExtraction(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}

	if rec.StorageURL != "" {
		if s.storage == nil || s.bucket == "" {
			return fmt.Errorf("delete %s: %w", id, ErrArchiveDisabled)
		}
		for _, key := range []string{objectclient.UploadKey(rec.ID, rec.FileName), objectclient.TextKey(rec.ID)} {
			if err := s.storage.DeleteFile(ctx, s.bucket, key); err != nil {
				return fmt.Errorf("delete archived %s: %w", key, err)
			}
		}
	}

	if err := s.db.DeleteExtraction(ctx, id); err != nil {
		return fmt.Errorf("delete audit record: %w", err)
	}
	s.logger.Info("extraction deleted", zap.String("extraction_id", id))
	return nil
}
