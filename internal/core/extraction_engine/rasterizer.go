package extraction_engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/markdave123-py/hybridocr/internal/core"
)

var _ core.PageRasterizer = (*PdftoppmRasterizer)(nil)

// PdftoppmRasterizer renders pages with poppler's pdftoppm.
type PdftoppmRasterizer struct {
	Path     string
	DPI      int
	MaxPages int
	runner   Runner
	logger   *zap.Logger
}

func NewPdftoppmRasterizer(path string, dpi int, runner Runner, logger *zap.Logger) *PdftoppmRasterizer {
	if path == "" {
		path = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 200
	}
	return &PdftoppmRasterizer{Path: path, DPI: dpi, runner: runner, logger: logger}
}

func (r *PdftoppmRasterizer) Rasterize(ctx context.Context, pdf []byte) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "hybridocr-*")
	if err != nil {
		return nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("failed to remove temp dir", zap.String("dir", path), zap.Error(err))
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png [-l <last>] <in.pdf> <tmp/page>
	args := []string{"-r", fmt.Sprintf("%d", r.DPI), "-png"}
	if r.MaxPages > 0 {
		args = append(args, "-l", fmt.Sprintf("%d", r.MaxPages))
	}
	args = append(args, in, prefix)
	_, errb, err := r.runner.Run(ctx, r.Path, args...)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// pdftoppm zero-pads page numbers, so lexical order is page order.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if r.MaxPages > 0 && len(matches) > r.MaxPages {
		matches = matches[:r.MaxPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no pages rendered")
	}

	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read rendered page: %w", err)
		}
		pages = append(pages, b)
	}
	return pages, nil
}
