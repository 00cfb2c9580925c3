package extraction_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
	"go.uber.org/zap"

	"github.com/markdave123-py/hybridocr/internal/core"
)

var _ core.TextExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.TextExtractor using sajari/docconv, which
// shells out to poppler's pdftotext for PDFs.
type DocconvExtractor struct {
	logger *zap.Logger
}

func NewDocconvExtractor(logger *zap.Logger) *DocconvExtractor {
	return &DocconvExtractor{logger: logger}
}

// ExtractText returns the trimmed text layer; an empty string means the PDF has none.
func (e *DocconvExtractor) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(pdf), "application/pdf", false)
	if err != nil {
		return "", fmt.Errorf("docconv: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.logger.Debug("docconv: converted",
		zap.Uint32("msecs", res.MSecs),
		zap.Int("chars", len(res.Body)),
	)
	return strings.TrimSpace(res.Body), nil
}
