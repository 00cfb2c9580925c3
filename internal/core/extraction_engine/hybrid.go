package extraction_engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/hybridocr/internal/core"
)

// Output is what one extraction produced.
type Output struct {
	Text  string
	Mode  string
	Pages int
}

// HybridExtractor tries the PDF's text layer first and falls back to OCR when
// there is none.
type HybridExtractor struct {
	text       core.TextExtractor
	rasterizer core.PageRasterizer
	ocr        core.OCREngine
	workers    int
	logger     *zap.Logger
}

func NewHybridExtractor(text core.TextExtractor, rasterizer core.PageRasterizer, ocr core.OCREngine, workers int, logger *zap.Logger) *HybridExtractor {
	if workers <= 0 {
		workers = 1
	}
	return &HybridExtractor{text: text, rasterizer: rasterizer, ocr: ocr, workers: workers, logger: logger}
}

func (h *HybridExtractor) Extract(ctx context.Context, pdf []byte) (*Output, error) {
	text, err := h.text.ExtractText(ctx, pdf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		h.logger.Debug("text extraction failed, trying OCR", zap.Error(err))
	}
	if strings.TrimSpace(text) != "" {
		h.logger.Info("extracted using text mode", zap.Int("chars", len(text)))
		return &Output{Text: strings.TrimSpace(text), Mode: core.ModeText}, nil
	}

	h.logger.Info("no text found, switching to OCR")
	pages, err := h.rasterizer.Rasterize(ctx, pdf)
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}

	texts := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	for i, page := range pages {
		g.Go(func() error {
			t, err := h.ocr.Recognize(gctx, page)
			if err != nil {
				return fmt.Errorf("ocr page %d: %w", i+1, err)
			}
			texts[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := strings.TrimSpace(strings.Join(texts, "\n"))
	h.logger.Info("OCR completed", zap.Int("pages", len(pages)), zap.Int("chars", len(out)))
	return &Output{Text: out, Mode: core.ModeOCR, Pages: len(pages)}, nil
}
