package extraction_engine

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrInvalidPDF is matched by every RejectedError.
var ErrInvalidPDF = errors.New("invalid pdf")

// RejectedError carries the message shown to the client for an upload we refuse.
type RejectedError struct {
	Reason string
	Cause  error
}

func (e *RejectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

func (e *RejectedError) Unwrap() error { return e.Cause }

func (e *RejectedError) Is(target error) bool { return target == ErrInvalidPDF }

// ValidatePDF checks name, size and structure of an upload and returns its page count.
func ValidatePDF(filename string, data []byte, maxSize int64) (int, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return 0, &RejectedError{Reason: "Uploaded file is not a PDF."}
	}
	if len(data) == 0 {
		return 0, &RejectedError{Reason: "Uploaded file is empty."}
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return 0, &RejectedError{Reason: fmt.Sprintf("File exceeds maximum allowed size (%d MB).", maxSize>>20)}
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, &RejectedError{Reason: "Uploaded file is not a valid PDF.", Cause: err}
	}
	return pages, nil
}
