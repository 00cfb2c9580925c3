package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/hybridocr/internal/config"
	"github.com/markdave123-py/hybridocr/internal/core"
	db "github.com/markdave123-py/hybridocr/internal/core/database"
	"github.com/markdave123-py/hybridocr/internal/core/extraction_engine"
	objectclient "github.com/markdave123-py/hybridocr/internal/core/object-client"
	"github.com/markdave123-py/hybridocr/internal/services"
)

type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Service      *services.ExtractionService
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	a := &App{}
	var dbClient *db.DatabaseClient
	if cfg.AuditEnabled() {
		c, err := db.NewDatabaseClient(appCtx, cfg)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		dbClient = c
		a.DBClient = c
		logger.Info("audit log ready")
	}

	var objClient *objectclient.S3Client
	if cfg.ArchiveEnabled() {
		c, err := objectclient.NewS3Client(appCtx, cfg, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("object storage: %w", err)
		}
		objClient = c
		a.ObjectClient = c
	}

	extractor := extraction_engine.NewHybridExtractor(
		extraction_engine.NewDocconvExtractor(logger),
		newRasterizer(cfg, extraction_engine.ExecRunner{Logger: logger}, logger),
		extraction_engine.NewTesseractEngine(cfg.TessdataDir, strings.Split(cfg.OCRLanguage, "+")...),
		cfg.OCRWorkers,
		logger,
	)

	// typed nils must not reach the service as non-nil interfaces
	var (
		dbc core.DbClient
		obj core.ObjectClient
	)
	if dbClient != nil {
		dbc = dbClient
	}
	if objClient != nil {
		obj = objClient
	}
	a.Service = services.NewExtractionService(extractor, dbc, obj, cfg.BucketName, cfg.MaxFileSize(), logger)
	a.Server = NewServer(cfg, a.Service, logger)
	return a, nil
}

func newRasterizer(cfg *config.Config, runner extraction_engine.Runner, logger *zap.Logger) *extraction_engine.PdftoppmRasterizer {
	r := extraction_engine.NewPdftoppmRasterizer(cfg.PdftoppmPath, cfg.OCRDPI, runner, logger)
	r.MaxPages = cfg.OCRMaxPages
	return r
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
