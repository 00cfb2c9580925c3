package extraction_job

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxDocumentSize mirrors the limit the extraction service enforces.
const DefaultMaxDocumentSize int64 = 10 << 20

// NoTextExtracted replaces an empty or missing text field in a successful response.
const NoTextExtracted = "No text could be extracted from this document."

const pdfContentType = "application/pdf"

// Document is the caller-supplied payload of a job. It is never mutated after
// being handed to SetDocument.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewDocument builds a Document, deriving the declared type from the filename.
func NewDocument(filename string, data []byte) *Document {
	return &Document{
		Filename:    filepath.Base(filename),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))),
		Data:        data,
	}
}

// LoadDocument reads a document from disk.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return NewDocument(path, data), nil
}

// validate returns a ValidationError when the document cannot be submitted.
func (d *Document) validate(maxSize int64) *JobError {
	if d == nil {
		return newJobError(KindValidation, "Please upload a PDF file first.", nil)
	}
	if !d.isPDF() {
		return newJobError(KindValidation, "Uploaded file is not a PDF.", nil)
	}
	if len(d.Data) == 0 {
		return newJobError(KindValidation, "Uploaded file is empty.", nil)
	}
	if maxSize > 0 && int64(len(d.Data)) > maxSize {
		return newJobError(KindValidation,
			fmt.Sprintf("File exceeds maximum allowed size (%d MB).", maxSize>>20), nil)
	}
	return nil
}

// isPDF trusts the declared content type and only falls back to the file
// extension when the type is missing or generic.
func (d *Document) isPDF() bool {
	ct := strings.TrimSpace(d.ContentType)
	if ct != "" && ct != "application/octet-stream" {
		mediaType, _, err := mime.ParseMediaType(ct)
		return err == nil && mediaType == pdfContentType
	}
	return strings.EqualFold(filepath.Ext(d.Filename), ".pdf")
}

// Mode is the server-declared extraction technique. It is a closed set: any
// value the server sends that we do not know maps to ModeUnknown.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeText
	ModeOCR
)

// ParseMode maps the server's "mode" field onto the closed variant.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return ModeText
	case "ocr":
		return ModeOCR
	default:
		return ModeUnknown
	}
}

func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeOCR:
		return "ocr"
	default:
		return "unknown"
	}
}

// Stage is the client-observable phase of a job.
type Stage int

const (
	StageIdle Stage = iota
	StageSubmitting
	StageAwaitingResult
	StageCompleted
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageSubmitting:
		return "submitting"
	case StageAwaitingResult:
		return "awaiting_result"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Active reports whether a job in this stage occupies the controller's slot.
func (s Stage) Active() bool {
	return s == StageSubmitting || s == StageAwaitingResult
}

// Terminal reports whether the job has finished.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Result is present only on completed jobs.
type Result struct {
	Text string
	Mode Mode
}

// Stats is what the presentation layer shows next to a finished job.
type Stats struct {
	Mode    Mode
	Elapsed time.Duration
}

// ElapsedString renders the latency in seconds with two decimals, e.g. "1.23s".
func (s Stats) ElapsedString() string {
	return fmt.Sprintf("%.2fs", s.Elapsed.Seconds())
}
