package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jakopako/goapply/internal/types"
)

var postgresSchema = []string{`
CREATE TABLE IF NOT EXISTS goapply_runs (
  run_id TEXT PRIMARY KEY,
  applied INTEGER NOT NULL,
  skipped INTEGER NOT NULL,
  failed INTEGER NOT NULL,
  started_at TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS goapply_listing_outcomes (
  run_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  listing_id TEXT NOT NULL,
  page INTEGER NOT NULL,
  title TEXT NOT NULL,
  company TEXT NOT NULL,
  outcome TEXT NOT NULL,
  reason TEXT NOT NULL,
  recorded_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (run_id, seq)
)`,
}

// PostgresWriter appends the audit log to a postgres database.
type PostgresWriter struct {
	*WriterConfig
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresWriter connects to the database given by dsn and creates the
// tables if they don't exist yet.
func NewPostgresWriter(wc *WriterConfig) (*PostgresWriter, error) {
	if wc.DSN == "" {
		return nil, errors.New("dsn needs to be specified for the PostgresWriter")
	}
	if wc.BatchSize == 0 {
		wc.BatchSize = 100 // default
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(wc.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &PostgresWriter{
		WriterConfig: wc,
		pool:         pool,
		logger:       slog.With(slog.String("writer", string(POSTGRES_WRITER_TYPE))),
	}, nil
}

func (w *PostgresWriter) Write(recordChan <-chan types.ListingRecord) {
	nrRecordsWritten := inBatches(recordChan, w.BatchSize, w.insertBatch)
	w.logger.Info(fmt.Sprintf("wrote %d records to postgres", nrRecordsWritten))
}

// inBatches hands the records to flush in batches of size, the last one
// possibly smaller, and returns the sum of what flush reported.
func inBatches(recordChan <-chan types.ListingRecord, size int, flush func([]types.ListingRecord) int) int {
	n := 0
	batch := []types.ListingRecord{}
	for record := range recordChan {
		batch = append(batch, record)
		if len(batch) >= size {
			n += flush(batch)
			batch = []types.ListingRecord{}
		}
	}
	if len(batch) > 0 {
		n += flush(batch)
	}
	return n
}

func queueRecords(records []types.ListingRecord) *pgx.Batch {
	b := &pgx.Batch{}
	for _, r := range records {
		b.Queue(`
INSERT INTO goapply_listing_outcomes
(run_id, seq, listing_id, page, title, company, outcome, reason, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (run_id, seq) DO NOTHING`,
			r.RunID, r.Seq, r.ListingID, r.Page, r.Title, r.Company,
			string(r.Outcome.Kind), r.Outcome.Reason, r.RecordedAt,
		)
	}
	return b
}

func (w *PostgresWriter) insertBatch(records []types.ListingRecord) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	br := w.pool.SendBatch(ctx, queueRecords(records))
	defer br.Close()
	total := 0
	for range records {
		tag, err := br.Exec()
		if err != nil {
			w.logger.Error(fmt.Sprintf("error while inserting batch: %v", err))
			return total
		}
		total += int(tag.RowsAffected())
	}
	return total
}

func (w *PostgresWriter) WriteSummary(summary types.RunSummary) {
	defer w.pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := w.pool.Exec(ctx, `
INSERT INTO goapply_runs (run_id, applied, skipped, failed, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (run_id) DO NOTHING`,
		summary.RunID, summary.Applied, summary.Skipped, summary.Failed(), summary.StartedAt, summary.FinishedAt,
	)
	if err != nil {
		w.logger.Error(fmt.Sprintf("error while inserting run summary: %v", err))
	}
}
