package core

import (
	"context"
)

// Extraction modes reported to clients.
const (
	ModeText = "text"
	ModeOCR  = "ocr"
)

// TextExtractor reads the embedded text layer of a PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// PageRasterizer renders every page of a PDF to a PNG image, in page order.
type PageRasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([][]byte, error)
}

// OCREngine recognizes the text on one rendered page.
type OCREngine interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}
