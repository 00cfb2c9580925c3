package core

import (
	"context"
	"errors"

	"github.com/markdave123-py/hybridocr/internal/models"
)

// ErrObjectNotFound is returned by ObjectClient.GetFile for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// DbClient defines the persistence operations of the extraction audit log.
type DbClient interface {
	InsertExtraction(ctx context.Context, rec *models.Extraction) error
	GetExtraction(ctx context.Context, id string) (*models.Extraction, error)
	ListRecentExtractions(ctx context.Context, limit int) ([]models.Extraction, error)
	DeleteExtraction(ctx context.Context, id string) error
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
