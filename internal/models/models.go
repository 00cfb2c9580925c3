package models

import (
	"time"
)

// Extraction statuses recorded in the audit log.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Extraction is one handled POST /extract request.
type Extraction struct {
	ID           string    `db:"id" json:"id"`
	FileName     string    `db:"file_name" json:"file_name"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	Pages        int       `db:"pages" json:"pages"`
	Mode         string    `db:"mode" json:"mode"`     // text | ocr, empty on failure
	Status       string    `db:"status" json:"status"` // completed | failed
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	TextLength   int       `db:"text_length" json:"text_length"`
	StorageURL   string    `db:"storage_url" json:"storage_url,omitempty"` // S3 URL of the archived upload
	ElapsedMS    int64     `db:"elapsed_ms" json:"elapsed_ms"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
