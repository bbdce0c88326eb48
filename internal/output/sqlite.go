package output

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/jakopako/goapply/internal/types"
	_ "modernc.org/sqlite"
)

const sqliteFilename = "goapply.db"

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  applied INTEGER NOT NULL,
  skipped INTEGER NOT NULL,
  failed INTEGER NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS listing_outcomes (
  run_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  listing_id TEXT NOT NULL,
  page INTEGER NOT NULL,
  title TEXT NOT NULL,
  company TEXT NOT NULL,
  outcome TEXT NOT NULL,
  reason TEXT NOT NULL,
  recorded_at TEXT NOT NULL,
  PRIMARY KEY (run_id, seq)
)`,
}

// SQLiteWriter appends the audit log to a local sqlite database.
type SQLiteWriter struct {
	*WriterConfig
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteWriter opens (and if necessary creates) the database. The path
// is taken from dsn or defaults to goapply.db inside filedir.
func NewSQLiteWriter(wc *WriterConfig) (*SQLiteWriter, error) {
	dbPath := wc.DSN
	if dbPath == "" {
		dir := wc.FileDir
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dbPath = path.Join(dir, sqliteFilename)
	}

	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate sqlite database %s: %w", dbPath, err)
		}
	}

	return &SQLiteWriter{
		WriterConfig: wc,
		db:           db,
		logger:       slog.With(slog.String("writer", string(SQLITE_WRITER_TYPE)), slog.String("db", dbPath)),
	}, nil
}

func (w *SQLiteWriter) Write(recordChan <-chan types.ListingRecord) {
	nrRecordsWritten := 0
	for r := range recordChan {
		_, err := w.db.Exec(`
INSERT INTO listing_outcomes (run_id, seq, listing_id, page, title, company, outcome, reason, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.Seq, r.ListingID, r.Page, r.Title, r.Company,
			string(r.Outcome.Kind), r.Outcome.Reason, r.RecordedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			w.logger.Error(fmt.Sprintf("error while inserting record for listing %s: %v", r.ListingID, err))
			continue
		}
		nrRecordsWritten++
	}
	w.logger.Info(fmt.Sprintf("wrote %d records to sqlite", nrRecordsWritten))
}

func (w *SQLiteWriter) WriteSummary(summary types.RunSummary) {
	defer w.db.Close()
	_, err := w.db.Exec(`
INSERT INTO runs (run_id, applied, skipped, failed, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		summary.RunID, summary.Applied, summary.Skipped, summary.Failed(),
		summary.StartedAt.UTC().Format(time.RFC3339), summary.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		w.logger.Error(fmt.Sprintf("error while inserting run summary: %v", err))
	}
}
