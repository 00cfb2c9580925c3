package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/markdave123-py/hybridocr/internal/config"
	"github.com/markdave123-py/hybridocr/internal/core"
	"github.com/markdave123-py/hybridocr/internal/models"
)

var _ core.DbClient = (*DatabaseClient)(nil)

type DatabaseClient struct {
	pool *pgxpool.Pool
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{pool: pool}, nil
}

func (c *DatabaseClient) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

func (c *DatabaseClient) InsertExtraction(ctx context.Context, rec *models.Extraction) error {
	if rec == nil {
		return errors.New("nil extraction")
	}
	const q = `
		INSERT INTO extractions
			(id, file_name, size_bytes, pages, mode, status, error_message, text_length, storage_url, elapsed_ms, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))
	`
	var createdAt *time.Time
	if !rec.CreatedAt.IsZero() {
		createdAt = &rec.CreatedAt
	}
	_, err := c.pool.Exec(ctx, q,
		rec.ID, rec.FileName, rec.SizeBytes, rec.Pages, rec.Mode, rec.Status,
		rec.ErrorMessage, rec.TextLength, rec.StorageURL, rec.ElapsedMS, createdAt)
	return err
}

// MaxListLimit caps ListRecentExtractions.
const MaxListLimit = 500

const extractionColumns = `id, file_name, size_bytes, pages, mode, status, error_message, text_length, storage_url, elapsed_ms, created_at`

func scanExtraction(row pgx.Row) (*models.Extraction, error) {
	var e models.Extraction
	err := row.Scan(
		&e.ID, &e.FileName, &e.SizeBytes, &e.Pages, &e.Mode, &e.Status,
		&e.ErrorMessage, &e.TextLength, &e.StorageURL, &e.ElapsedMS, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *DatabaseClient) GetExtraction(ctx context.Context, id string) (*models.Extraction, error) {
	q := `SELECT ` + extractionColumns + ` FROM extractions WHERE id = $1`
	e, err := scanExtraction(c.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (c *DatabaseClient) ListRecentExtractions(ctx context.Context, limit int) ([]models.Extraction, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	q := `SELECT ` + extractionColumns + ` FROM extractions ORDER BY created_at DESC LIMIT $1`
	rows, err := c.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteExtraction(ctx context.Context, id string) error {
	_, err := c.pool.Exec(ctx, `DELETE FROM extractions WHERE id = $1`, id)
	return err
}
